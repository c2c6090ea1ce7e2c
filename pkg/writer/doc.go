// Package writer holds goldmark node renderers for output formats other
// than HTML.
//
// Subpackages:
//   - [latex]: LaTeX body markup, one file per document
//   - [text]: plain text with reStructuredText-style heading underlines
//
// Each subpackage exposes NewRenderer, to be registered with
// renderer.WithNodeRenderers at a low priority so that extension renderers
// can override individual node kinds.
package writer
