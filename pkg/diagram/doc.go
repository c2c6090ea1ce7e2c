// Package diagram turns blockdiag source text into image files.
//
// The pipeline has three stages:
//
//  1. [Engine.Build] translates the blockdiag dialect into Graphviz DOT,
//     lays it out with go-graphviz and extracts the node geometry from the
//     resulting SVG into a [Diagram].
//  2. [ImageFilename] derives a content-addressed file name from the source
//     and the rendering [Options].
//  3. [Renderer.Render] draws the diagram as PNG, SVG or PDF, skipping the
//     work when the artifact index already holds a verified copy, and
//     [Renderer.Thumbnail] produces the reduced image for max-width
//     diagrams.
//
// Node hyperlinks are kept raw in the [Diagram]; resolving them against
// the documentation project is the caller's business.
package diagram
