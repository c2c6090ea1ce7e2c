// Package docs is the documentation host that extensions plug into.
//
// A [Project] is a tree of Markdown sources. Each source is a [Document]
// named by its slash-separated path without the ".md" extension
// ("guide/install"). Documents are parsed with goldmark; fenced code blocks
// whose info string names a registered [Directive] are handed to the
// directive, which replaces them with its own AST node.
//
// An [App] holds everything extensions register: directives, node
// renderers per output [Format], config values and event handlers. A
// [Builder] turns the parsed project into output files:
//
//	app := docs.NewApp(docs.AppOptions{Config: cfg, Logger: logger})
//	if err := blockdiag.Setup(app); err != nil {
//	    return err
//	}
//	project, err := app.LoadProject(ctx, cfg.Source)
//	builder, err := docs.NewBuilder(cfg.Builder, cfg.Output, cfg.Project.Title)
//	stats, err := app.Build(ctx, project, builder)
//
// Rendering is sequential: node renderers run one document at a time and
// can ask the app for the [Page] being written.
package docs
