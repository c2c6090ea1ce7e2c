// Package xref resolves the hyperlinks attached to diagram nodes.
//
// A node link is either an internal cross-reference written as
// ":ref:`anchor`" or any other string, which is used as an external URL
// unchanged. Internal references are looked up in the documents of the
// current build and turned into URLs relative to the referring document.
package xref

import (
	"regexp"

	"github.com/matzehuels/docdiag/pkg/diagram"
)

var refRe = regexp.MustCompile("^:ref:`(.+?)`")

// Kind classifies a resolved link.
type Kind int

const (
	// None means the node has no link.
	None Kind = iota
	// Internal is a cross-reference that matched an anchor in the build.
	Internal
	// Unresolved is a cross-reference without a matching anchor.
	Unresolved
	// External is any other link, kept as written.
	External
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Internal:
		return "internal"
	case Unresolved:
		return "unresolved"
	case External:
		return "external"
	}
	return "unknown"
}

// Link is the outcome of resolving a node hyperlink.
type Link struct {
	Kind Kind
	// URL is set for Internal and External links.
	URL string
	// Ref is the anchor id of Internal and Unresolved links.
	Ref string
}

// HasURL reports whether the link produces a hyperlink.
func (l Link) HasURL() bool {
	return l.Kind == Internal || l.Kind == External
}

// Index lists the documents of a build and the anchor ids they define.
type Index interface {
	DocNames() []string
	Targets(docname string) []string
}

// URIFunc returns the URI of document to as seen from document from.
type URIFunc func(from, to string) string

// Resolver resolves node links against an index.
type Resolver struct {
	index Index
	uri   URIFunc
}

// NewResolver creates a resolver. With a nil index every cross-reference
// is unresolved.
func NewResolver(index Index, uri URIFunc) *Resolver {
	return &Resolver{index: index, uri: uri}
}

// Resolve resolves href as seen from document fromDoc.
//
// Every document is scanned for a matching anchor; the first match in
// document order wins.
func (r *Resolver) Resolve(href, fromDoc string) Link {
	if href == "" {
		return Link{Kind: None}
	}
	m := refRe.FindStringSubmatch(href)
	if m == nil {
		return Link{Kind: External, URL: href}
	}
	id := m[1]
	if r.index == nil {
		return Link{Kind: Unresolved, Ref: id}
	}
	for _, doc := range r.index.DocNames() {
		for _, target := range r.index.Targets(doc) {
			if target == id {
				return Link{Kind: Internal, URL: r.uri(fromDoc, doc) + "#" + id, Ref: id}
			}
		}
	}
	return Link{Kind: Unresolved, Ref: id}
}

// ResolveDiagram resolves the link of every node of d. It returns the
// clickable regions and the anchor ids that could not be resolved.
func (r *Resolver) ResolveDiagram(d *diagram.Diagram, fromDoc string) ([]diagram.Region, []string) {
	var (
		regions    []diagram.Region
		unresolved []string
	)
	for _, n := range d.Nodes {
		link := r.Resolve(n.Href, fromDoc)
		switch {
		case link.HasURL():
			regions = append(regions, diagram.Region{NodeID: n.ID, Box: n.Box, URL: link.URL})
		case link.Kind == Unresolved:
			unresolved = append(unresolved, link.Ref)
		}
	}
	return regions, unresolved
}

// Links returns the URLs of the linked nodes of d keyed by node id, for
// writing into image files. With externalOnly set, cross-references are
// left out even when they resolve.
func (r *Resolver) Links(d *diagram.Diagram, fromDoc string, externalOnly bool) map[string]string {
	links := map[string]string{}
	for _, n := range d.Nodes {
		link := r.Resolve(n.Href, fromDoc)
		if !link.HasURL() || (externalOnly && link.Kind != External) {
			continue
		}
		links[n.ID] = link.URL
	}
	return links
}

// Hrefs returns the region URLs keyed by node id, as expected by
// [diagram.RewriteLinks].
func Hrefs(regions []diagram.Region) map[string]string {
	m := make(map[string]string, len(regions))
	for _, rg := range regions {
		m[rg.NodeID] = rg.URL
	}
	return m
}
