// Package blockdiag embeds blockdiag diagrams in documents.
//
// [Setup] registers the extension with a [docs.App]. Documents then use a
// fenced block named blockdiag:
//
//	```blockdiag maxwidth=300 alt="Request flow" class="wide"
//	blockdiag {
//	  browser -> server -> db;
//	  server [href = ":ref:`api`"];
//	}
//	```
//
// Each diagram is rendered to an image file named after the hash of its
// source and options, so identical diagrams are drawn once and reused by
// later builds. How the image appears in the output depends on the
// builder's [docs.Format]:
//
//   - HTML: an <img> tag with a client-side image map for linked nodes, or
//     the inlined SVG
//   - LaTeX: an \includegraphics command
//   - anything else: a plain Markdown image pointing at a PNG
//
// Diagram failures are reported as build warnings and the diagram is left
// out; they never stop a build. Syntax errors are also shown inline where
// the diagram would have been.
package blockdiag
