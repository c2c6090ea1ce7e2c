package diagram

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	svgTagRe    = regexp.MustCompile(`<svg\b[^>]*>`)
	widthAttrRe = regexp.MustCompile(`\swidth="([0-9.]+)(pt|px)?"`)
	heightAttr  = regexp.MustCompile(`\sheight="([0-9.]+)(pt|px)?"`)
	scaleRe     = regexp.MustCompile(`scale\(\s*([-0-9.]+)(?:[\s,]+([-0-9.]+))?\s*\)`)
	translateRe = regexp.MustCompile(`translate\(\s*([-0-9.]+)[\s,]+([-0-9.]+)\s*\)`)
	numberRe    = regexp.MustCompile(`-?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?`)
	nodeLinkRe  = regexp.MustCompile(`(<g id="a_(node[0-9]+)">\s*<a\b[^>]*?)\s+(?:xlink:)?href="[^"]*"`)
)

// transform is the Graphviz page transform "scale(s) translate(tx ty)".
type transform struct {
	sx, sy, tx, ty float64
}

func (t transform) apply(x, y float64) (float64, float64) {
	return t.sx * (x + t.tx), t.sy * (y + t.ty)
}

func parseTransform(s string) transform {
	t := transform{sx: 1, sy: 1}
	if m := scaleRe.FindStringSubmatch(s); m != nil {
		t.sx, _ = strconv.ParseFloat(m[1], 64)
		t.sy = t.sx
		if m[2] != "" {
			t.sy, _ = strconv.ParseFloat(m[2], 64)
		}
	}
	if m := translateRe.FindStringSubmatch(s); m != nil {
		t.tx, _ = strconv.ParseFloat(m[1], 64)
		t.ty, _ = strconv.ParseFloat(m[2], 64)
	}
	return t
}

// bbox accumulates the extent of a node's shapes.
type bbox struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func newBBox() bbox {
	return bbox{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1), empty: true}
}

func (b *bbox) add(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
	b.empty = false
}

func (b *bbox) addNumbers(s string) {
	nums := numberRe.FindAllString(s, -1)
	for i := 0; i+1 < len(nums); i += 2 {
		x, err1 := strconv.ParseFloat(nums[i], 64)
		y, err2 := strconv.ParseFloat(nums[i+1], 64)
		if err1 == nil && err2 == nil {
			b.add(x, y)
		}
	}
}

// parseSVG extracts the page size and node geometry from Graphviz SVG.
func parseSVG(data []byte) (*Diagram, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	d := &Diagram{}
	tf := transform{sx: 1, sy: 1}
	seenRoot := false

	var (
		cur       *Node
		box       bbox
		nodeDepth int
		depth     int
		inTitle   bool
		inText    bool
		title     strings.Builder
		labels    []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			attrs := attrMap(el.Attr)
			switch el.Name.Local {
			case "svg":
				if !seenRoot {
					seenRoot = true
					d.Width = parseLength(attrs["width"])
					d.Height = parseLength(attrs["height"])
					if d.Width == 0 || d.Height == 0 {
						d.Width, d.Height = viewBoxSize(attrs["viewBox"])
					}
				}
			case "g":
				switch {
				case attrs["id"] == "graph0":
					tf = parseTransform(attrs["transform"])
				case attrs["class"] == "node" && cur == nil:
					cur = &Node{ID: attrs["id"]}
					nodeDepth = depth
					box = newBBox()
					title.Reset()
					labels = nil
				}
			case "title":
				inTitle = cur != nil
			case "text":
				if cur != nil {
					inText = true
					labels = append(labels, "")
				}
			case "a":
				if cur != nil && cur.Href == "" {
					cur.Href = attrs["href"]
				}
			case "polygon", "polyline":
				if cur != nil {
					box.addNumbers(attrs["points"])
				}
			case "path":
				if cur != nil {
					box.addNumbers(attrs["d"])
				}
			case "ellipse":
				if cur != nil {
					cx, cy := atof(attrs["cx"]), atof(attrs["cy"])
					rx, ry := atof(attrs["rx"]), atof(attrs["ry"])
					box.add(cx-rx, cy-ry)
					box.add(cx+rx, cy+ry)
				}
			case "rect":
				if cur != nil {
					x, y := atof(attrs["x"]), atof(attrs["y"])
					box.add(x, y)
					box.add(x+atof(attrs["width"]), y+atof(attrs["height"]))
				}
			}

		case xml.CharData:
			switch {
			case inTitle:
				title.Write(el)
			case inText:
				labels[len(labels)-1] += string(el)
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "title":
				inTitle = false
			case "text":
				inText = false
			case "g":
				if cur != nil && depth == nodeDepth {
					cur.Name = strings.TrimSpace(title.String())
					cur.Label = strings.Join(labels, "\n")
					if !box.empty {
						x1, y1 := tf.apply(box.minX, box.minY)
						x2, y2 := tf.apply(box.maxX, box.maxY)
						cur.Box = Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
					}
					d.Nodes = append(d.Nodes, *cur)
					cur = nil
				}
			}
			depth--
		}
	}

	if !seenRoot {
		return nil, fmt.Errorf("parse svg: no <svg> element")
	}
	return d, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		// xlink:href and href both land on "href"
		if _, ok := m[a.Name.Local]; !ok || a.Name.Space == "" {
			m[a.Name.Local] = a.Value
		}
	}
	return m
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// parseLength parses an SVG length in points. Pixel lengths are converted.
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "pt"):
		return atof(strings.TrimSuffix(s, "pt"))
	case strings.HasSuffix(s, "px"):
		return atof(strings.TrimSuffix(s, "px")) * 0.75
	}
	return atof(s)
}

func viewBoxSize(s string) (float64, float64) {
	f := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(f) != 4 {
		return 0, 0
	}
	return atof(f[2]), atof(f[3])
}

// RewriteLinks replaces the hyperlink of every linked node. hrefs is keyed
// by node ID; a node missing from hrefs, or mapped to "", loses its link.
// A nil map strips all node links.
func RewriteLinks(svg []byte, hrefs map[string]string) []byte {
	return nodeLinkRe.ReplaceAllFunc(svg, func(m []byte) []byte {
		sub := nodeLinkRe.FindSubmatch(m)
		head, id := sub[1], string(sub[2])
		url := hrefs[id]
		if url == "" {
			return append([]byte{}, head...)
		}
		out := append([]byte{}, head...)
		return append(out, fmt.Sprintf(` xlink:href="%s"`, html.EscapeString(url))...)
	})
}

// SetSize sets the width and height of the root svg element, keeping its
// viewBox so the drawing scales to the new size.
func SetSize(svg []byte, width, height float64) []byte {
	loc := svgTagRe.FindIndex(svg)
	if loc == nil {
		return svg
	}
	tag := svg[loc[0]:loc[1]]
	tag = widthAttrRe.ReplaceAll(tag, []byte(fmt.Sprintf(` width="%.0fpx"`, width)))
	tag = heightAttr.ReplaceAll(tag, []byte(fmt.Sprintf(` height="%.0fpx"`, height)))

	out := make([]byte, 0, len(svg)+16)
	out = append(out, svg[:loc[0]]...)
	out = append(out, tag...)
	return append(out, svg[loc[1]:]...)
}

// StripProlog removes everything before the root svg element (XML
// declaration, doctype, comments) so the document can be inlined in HTML.
func StripProlog(svg []byte) []byte {
	if i := bytes.Index(svg, []byte("<svg")); i > 0 {
		return svg[i:]
	}
	return svg
}

// svgSize returns the root size of an SVG document in CSS pixels.
func svgSize(svg []byte) (float64, float64) {
	tag := svgTagRe.Find(svg)
	if tag == nil {
		return 0, 0
	}
	return cssPixels(widthAttrRe.FindSubmatch(tag)), cssPixels(heightAttr.FindSubmatch(tag))
}

func cssPixels(m [][]byte) float64 {
	if m == nil {
		return 0
	}
	v := atof(string(m[1]))
	if string(m[2]) == "pt" {
		return v * 4 / 3
	}
	return v
}
