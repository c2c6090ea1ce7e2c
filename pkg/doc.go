// Package pkg provides the core libraries for docdiag, a Markdown
// documentation builder with inline blockdiag diagrams.
//
// # Overview
//
// A project is a tree of Markdown documents plus a docdiag.toml file. Fenced
// code blocks tagged "blockdiag" are laid out with Graphviz, drawn to PNG, SVG
// or PDF, and embedded in the output of the selected builder. Diagram nodes can
// link to headings elsewhere in the project with :ref:`label` hrefs.
//
// The pkg directory is organized into these areas:
//
//  1. [docs] - The documentation host: project discovery, goldmark parsing,
//     extension registry, builders and one-shot warnings
//  2. [blockdiag] - The blockdiag extension: directive, per-format emitters
//  3. [diagram] - Diagram layout, rendering, thumbnails and the image index
//  4. [xref] - Resolution of :ref: hyperlinks in diagram nodes
//  5. [writer] - LaTeX and plain-text goldmark renderers
//  6. [pipeline] - Orchestration (config, cache, extensions, build)
//  7. [server] - Preview server with rebuild on change
//  8. [cache], [config], [errors], [observability], [buildinfo] - Infrastructure
//
// # Architecture
//
// The data flow of a build:
//
//	docdiag.toml + *.md
//	         ↓
//	    [docs] package (discover, parse, collect targets)
//	         ↓
//	    [blockdiag] directive (fenced block → diagram node)
//	         ↓
//	    [diagram] package (layout, render, cache)
//	         ↓
//	    [blockdiag] emitter (HTML image map / inline SVG, LaTeX, generic image)
//	         ↓
//	    _build/<doc>.html|.tex|.txt + _images/
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/docdiag/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Build(context.Background(), pipeline.Options{Dir: "."})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d documents, %d diagrams\n", res.Documents, res.Diagrams)
//
// # CLI
//
// The docdiag binary (cmd/docdiag) wraps these packages:
//
//	docdiag build -b html
//	docdiag render flow.diag --format svg
//	docdiag serve --port 8000
//	docdiag cache clear
package pkg
