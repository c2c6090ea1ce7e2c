// Package server is the preview server behind "docdiag serve".
//
// It serves the output directory of a project, rebuilds the project when a
// file under the source directory changes, and exposes two endpoints:
//
//	GET  /_docdiag/status   last build result as JSON
//	POST /_docdiag/rebuild  rebuild now and return the result
//
// Rebuilds never overlap: a change that arrives during a build is picked
// up by the next one.
package server
