package diagram

// Diagram is a laid-out blockdiag diagram.
//
// Coordinates are in points with the origin at the top-left corner of the
// page, as in the SVG rendering.
type Diagram struct {
	Name   string  `json:"name,omitempty"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Nodes  []Node  `json:"nodes"`

	// Source is the blockdiag source the diagram was built from.
	Source string `json:"source"`
	// DOT is the translated Graphviz source.
	DOT string `json:"dot"`
	// SVG is the Graphviz SVG rendering with raw node hyperlinks.
	SVG []byte `json:"svg"`
}

// Node is one diagram node.
type Node struct {
	// ID is the element id Graphviz assigned in the SVG ("node1").
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	// Href is the hyperlink as written in the source, e.g. ":ref:`intro`".
	Href string `json:"href,omitempty"`
	Box  Rect   `json:"box"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Scale returns r with every coordinate multiplied by f.
func (r Rect) Scale(f float64) Rect {
	return Rect{X1: r.X1 * f, Y1: r.Y1 * f, X2: r.X2 * f, Y2: r.Y2 * f}
}

// LinkedNodes returns the nodes that carry a hyperlink.
func (d *Diagram) LinkedNodes() []Node {
	var out []Node
	for _, n := range d.Nodes {
		if n.Href != "" {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node with the given name.
func (d *Diagram) Node(name string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Region is a clickable node area with its resolved hyperlink.
type Region struct {
	NodeID string
	Box    Rect
	URL    string
}
