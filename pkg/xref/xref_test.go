package xref

import (
	"testing"

	"github.com/matzehuels/docdiag/pkg/diagram"
)

type testIndex map[string][]string

func (ix testIndex) DocNames() []string {
	return []string{"guide/install", "index", "reference/api"}
}

func (ix testIndex) Targets(doc string) []string {
	return ix[doc]
}

func htmlURI(from, to string) string {
	if from == to {
		return ""
	}
	return "/" + to + ".html"
}

func newTestResolver() *Resolver {
	return NewResolver(testIndex{
		"index":         {"welcome", "intro"},
		"guide/install": {"install", "requirements"},
		"reference/api": {"api", "intro"},
	}, htmlURI)
}

func TestResolve(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name string
		href string
		from string
		want Link
	}{
		{"empty", "", "index", Link{Kind: None}},
		{"external", "https://example.com/x", "index", Link{Kind: External, URL: "https://example.com/x"}},
		{"relative external", "other.html", "index", Link{Kind: External, URL: "other.html"}},
		{"internal", ":ref:`requirements`", "index", Link{Kind: Internal, URL: "/guide/install.html#requirements", Ref: "requirements"}},
		{"same document", ":ref:`welcome`", "index", Link{Kind: Internal, URL: "#welcome", Ref: "welcome"}},
		{"first document wins", ":ref:`intro`", "guide/install", Link{Kind: Internal, URL: "/index.html#intro", Ref: "intro"}},
		{"unresolved", ":ref:`missing`", "index", Link{Kind: Unresolved, Ref: "missing"}},
		{"marker must lead", "see :ref:`intro`", "index", Link{Kind: External, URL: "see :ref:`intro`"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.href, tt.from); got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.href, got, tt.want)
			}
		})
	}
}

func TestResolveDiagram(t *testing.T) {
	r := newTestResolver()
	d := &diagram.Diagram{Nodes: []diagram.Node{
		{ID: "node1", Name: "A", Href: ":ref:`install`", Box: diagram.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		{ID: "node2", Name: "B"},
		{ID: "node3", Name: "C", Href: ":ref:`nowhere`"},
		{ID: "node4", Name: "D", Href: "https://example.com"},
	}}

	regions, unresolved := r.ResolveDiagram(d, "index")
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].NodeID != "node1" || regions[0].URL != "/guide/install.html#install" || regions[0].Box.X2 != 3 {
		t.Errorf("regions[0] = %+v", regions[0])
	}
	if regions[1].URL != "https://example.com" {
		t.Errorf("regions[1] = %+v", regions[1])
	}
	if len(unresolved) != 1 || unresolved[0] != "nowhere" {
		t.Errorf("unresolved = %v", unresolved)
	}

	hrefs := Hrefs(regions)
	if hrefs["node4"] != "https://example.com" || len(hrefs) != 2 {
		t.Errorf("Hrefs = %v", hrefs)
	}
}

func TestLinks(t *testing.T) {
	d := &diagram.Diagram{Nodes: []diagram.Node{
		{ID: "node1", Name: "A", Href: ":ref:`install`"},
		{ID: "node2", Name: "B"},
		{ID: "node3", Name: "C", Href: ":ref:`nowhere`"},
		{ID: "node4", Name: "D", Href: "https://example.com"},
	}}

	all := newTestResolver().Links(d, "index", false)
	if len(all) != 2 || all["node1"] != "/guide/install.html#install" || all["node4"] != "https://example.com" {
		t.Errorf("Links = %v", all)
	}

	external := newTestResolver().Links(d, "index", true)
	if len(external) != 1 || external["node4"] != "https://example.com" {
		t.Errorf("external Links = %v", external)
	}

	bare := NewResolver(nil, nil).Links(d, "", false)
	if len(bare) != 1 || bare["node4"] != "https://example.com" {
		t.Errorf("Links without index = %v", bare)
	}
	if got := NewResolver(nil, nil).Resolve(":ref:`install`", ""); got.Kind != Unresolved {
		t.Errorf("Resolve without index = %+v, want unresolved", got)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{None: "none", Internal: "internal", Unresolved: "unresolved", External: "external", Kind(9): "unknown"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
