package diagram

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TranslateOptions are the render settings injected into the DOT output.
type TranslateOptions struct {
	// Fonts resolves fontfamily attributes and the default font.
	Fonts *FontMap
	// DPI sets the bitmap resolution; 0 keeps the Graphviz default.
	DPI int
}

// Translate converts blockdiag source into a Graphviz digraph.
//
// Diagram attributes (orientation, node_width, default_shape, ...) apply to
// the whole diagram regardless of where they appear. Node and edge
// attributes are renamed to their Graphviz equivalents; attributes with no
// Graphviz counterpart are dropped.
func Translate(source string, opts TranslateOptions) (string, error) {
	toks, err := lex(source)
	if err != nil {
		return "", err
	}
	t := &translator{
		toks:       toks,
		opts:       opts,
		classes:    map[string][]attr{},
		graphAttrs: newAttrSet(),
		nodeAttrs:  newAttrSet(),
		edgeAttrs:  newAttrSet(),
		groupColor: "orange",
	}
	return t.translate()
}

// =============================================================================
// Lexer
// =============================================================================

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tString
	tPunct
	tEdge
)

type token struct {
	kind tokKind
	val  string // DOT-ready text; strings are unquoted but keep escapes
	line int
}

func (t token) is(kind tokKind, val string) bool {
	return t.kind == kind && t.val == val
}

func (t token) String() string {
	switch t.kind {
	case tEOF:
		return "end of input"
	case tString:
		return strconv.Quote(t.val)
	}
	return fmt.Sprintf("%q", t.val)
}

// edgeOps is ordered longest first.
var edgeOps = []string{"<-->", "<->", "<--", "-->", "->", "<-", "--"}

func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "//") || c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated comment", line)
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
		case c == '"' || c == '\'':
			val, n, err := lexString(src[i:], line)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tString, val: val, line: line})
			line += strings.Count(src[i:i+n], "\n")
			i += n
		case strings.ContainsRune("{}[];=,", rune(c)):
			toks = append(toks, token{kind: tPunct, val: string(c), line: line})
			i++
		default:
			if op := matchEdgeOp(src[i:]); op != "" {
				toks = append(toks, token{kind: tEdge, val: op, line: line})
				i += len(op)
				continue
			}
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
			}
			if i == start {
				r, _ := utf8.DecodeRuneInString(src[i:])
				return nil, fmt.Errorf("line %d: unexpected character %q", line, r)
			}
			toks = append(toks, token{kind: tIdent, val: src[start:i], line: line})
		}
	}
	return append(toks, token{kind: tEOF, line: line}), nil
}

func matchEdgeOp(s string) string {
	for _, op := range edgeOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) || (r >= 0x80 && !unicode.IsSpace(r))
}

// lexString reads a quoted string starting at s[0]. Single-quoted strings
// are converted to DOT double-quote escaping.
func lexString(s string, line int) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if quote == '\'' && next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(next)
			}
			i++
		case c == quote:
			return b.String(), i + 1, nil
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("line %d: unterminated string", line)
}

// =============================================================================
// Translator
// =============================================================================

type attr struct {
	key, val string
}

// attrSet keeps the last value per key in insertion order.
type attrSet struct {
	keys []string
	vals map[string]string
}

func newAttrSet() *attrSet {
	return &attrSet{vals: map[string]string{}}
}

func (s *attrSet) set(key, val string) {
	if _, ok := s.vals[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.vals[key] = val
}

func (s *attrSet) String() string {
	parts := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quote(s.vals[k])))
	}
	return strings.Join(parts, ", ")
}

type translator struct {
	toks []token
	pos  int
	opts TranslateOptions

	classes    map[string][]attr
	graphAttrs *attrSet
	nodeAttrs  *attrSet
	edgeAttrs  *attrSet
	groupColor string
	clusters   int
}

func (t *translator) peek() token { return t.toks[t.pos] }

func (t *translator) next() token {
	tok := t.toks[t.pos]
	if tok.kind != tEOF {
		t.pos++
	}
	return tok
}

func (t *translator) expect(kind tokKind, val string) error {
	tok := t.next()
	if !tok.is(kind, val) {
		return fmt.Errorf("line %d: expected %q, found %s", tok.line, val, tok)
	}
	return nil
}

func (t *translator) translate() (string, error) {
	name := ""
	if tok := t.peek(); tok.kind == tIdent && (tok.val == "blockdiag" || tok.val == "diagram") {
		t.next()
	}
	if tok := t.peek(); tok.kind == tIdent || tok.kind == tString {
		name = t.next().val
	}
	if err := t.expect(tPunct, "{"); err != nil {
		return "", err
	}

	t.defaults()

	var body strings.Builder
	if err := t.statements(&body, false); err != nil {
		return "", err
	}
	if err := t.expect(tPunct, "}"); err != nil {
		return "", err
	}
	if tok := t.peek(); tok.kind != tEOF {
		return "", fmt.Errorf("line %d: unexpected %s after diagram", tok.line, tok)
	}
	if t.opts.DPI > 0 {
		t.graphAttrs.set("dpi", strconv.Itoa(t.opts.DPI))
	}

	var out strings.Builder
	if name != "" {
		fmt.Fprintf(&out, "digraph %s {\n", quote(name))
	} else {
		out.WriteString("digraph {\n")
	}
	fmt.Fprintf(&out, "  graph [%s];\n", t.graphAttrs)
	fmt.Fprintf(&out, "  node [%s];\n", t.nodeAttrs)
	fmt.Fprintf(&out, "  edge [%s];\n", t.edgeAttrs)
	out.WriteString(body.String())
	out.WriteString("}\n")
	return out.String(), nil
}

// defaults mirrors the blockdiag look: left-to-right, 128x40 px boxes,
// 64 px between ranks.
func (t *translator) defaults() {
	t.graphAttrs.set("rankdir", "LR")
	t.graphAttrs.set("bgcolor", "transparent")
	t.graphAttrs.set("nodesep", "0.56")
	t.graphAttrs.set("ranksep", "0.89")

	t.nodeAttrs.set("shape", "box")
	t.nodeAttrs.set("style", "filled")
	t.nodeAttrs.set("fillcolor", "white")
	t.nodeAttrs.set("color", "black")
	t.nodeAttrs.set("fontsize", "11")
	t.nodeAttrs.set("width", "1.78")
	t.nodeAttrs.set("height", "0.56")

	t.edgeAttrs.set("arrowsize", "0.8")
	t.edgeAttrs.set("fontsize", "11")

	if fonts := t.opts.Fonts; fonts != nil {
		if name, _ := fontRef(fonts.DefaultFont()); name != "" {
			t.nodeAttrs.set("fontname", name)
			t.edgeAttrs.set("fontname", name)
			t.graphAttrs.set("fontname", name)
		}
		if dirs := fonts.dirs(); len(dirs) > 0 {
			t.graphAttrs.set("fontpath", strings.Join(dirs, ":"))
		}
	}
}

// statements translates until the closing brace of the current block.
func (t *translator) statements(out *strings.Builder, inGroup bool) error {
	for {
		tok := t.peek()
		switch {
		case tok.kind == tEOF:
			return fmt.Errorf("line %d: missing closing brace", tok.line)
		case tok.is(tPunct, "}"):
			return nil
		case tok.is(tPunct, ";"):
			t.next()
			continue
		}
		if err := t.statement(out, inGroup); err != nil {
			return err
		}
	}
}

func (t *translator) statement(out *strings.Builder, inGroup bool) error {
	tok := t.peek()
	if tok.kind != tIdent && tok.kind != tString {
		return fmt.Errorf("line %d: unexpected %s", tok.line, tok)
	}

	if tok.kind == tIdent {
		switch tok.val {
		case "group":
			if inGroup {
				return fmt.Errorf("line %d: nested groups are not supported", tok.line)
			}
			return t.group(out)
		case "class":
			if after := t.toks[t.pos+1]; after.kind == tIdent || after.kind == tString {
				return t.classDef()
			}
		}
		if t.toks[t.pos+1].is(tPunct, "=") {
			t.next()
			t.next()
			val, err := t.value()
			if err != nil {
				return err
			}
			if inGroup {
				t.groupAttr(out, tok.val, val)
			} else {
				t.diagramAttr(tok.val, val)
			}
			return nil
		}
	}

	return t.nodeOrEdge(out)
}

func (t *translator) value() (string, error) {
	tok := t.next()
	if tok.kind != tIdent && tok.kind != tString {
		return "", fmt.Errorf("line %d: expected value, found %s", tok.line, tok)
	}
	return tok.val, nil
}

func (t *translator) group(out *strings.Builder) error {
	t.next()
	if tok := t.peek(); tok.kind == tIdent || tok.kind == tString {
		t.next()
	}
	if err := t.expect(tPunct, "{"); err != nil {
		return err
	}

	t.clusters++
	fmt.Fprintf(out, "  subgraph %s {\n", quote(fmt.Sprintf("cluster_%d", t.clusters)))
	fmt.Fprintf(out, "    style=\"filled\"; fillcolor=%s; color=\"transparent\"; label=\"\";\n", quote(t.groupColor))

	var body strings.Builder
	if err := t.statements(&body, true); err != nil {
		return err
	}
	if err := t.expect(tPunct, "}"); err != nil {
		return err
	}
	out.WriteString(indent(body.String()))
	out.WriteString("  }\n")
	return nil
}

func (t *translator) classDef() error {
	t.next()
	name := t.next().val
	attrs, err := t.attrList()
	if err != nil {
		return err
	}
	t.classes[name] = attrs
	return nil
}

// nodeOrEdge handles "A [attrs]", "A, B" and "A -> B, C -> D [attrs]".
func (t *translator) nodeOrEdge(out *strings.Builder) error {
	lists := [][]string{}
	var ops []string

	for {
		ids, err := t.idList()
		if err != nil {
			return err
		}
		lists = append(lists, ids)
		if t.peek().kind != tEdge {
			break
		}
		ops = append(ops, t.next().val)
	}

	var attrs []attr
	if t.peek().is(tPunct, "[") {
		var err error
		if attrs, err = t.attrList(); err != nil {
			return err
		}
	}

	if len(ops) == 0 {
		set := t.nodeSet(attrs)
		for _, id := range lists[0] {
			if len(set.keys) > 0 {
				fmt.Fprintf(out, "  %s [%s];\n", quote(id), set)
			} else {
				fmt.Fprintf(out, "  %s;\n", quote(id))
			}
		}
		return nil
	}

	set := newAttrSet()
	for _, op := range ops {
		edgeOpAttrs(set, op)
	}
	t.edgeSet(set, attrs)

	parts := make([]string, len(lists))
	for i, ids := range lists {
		parts[i] = endpoint(ids)
	}
	stmt := strings.Join(parts, " -> ")
	if len(set.keys) > 0 {
		fmt.Fprintf(out, "  %s [%s];\n", stmt, set)
	} else {
		fmt.Fprintf(out, "  %s;\n", stmt)
	}
	return nil
}

func (t *translator) idList() ([]string, error) {
	var ids []string
	for {
		tok := t.next()
		if tok.kind != tIdent && tok.kind != tString {
			return nil, fmt.Errorf("line %d: expected node id, found %s", tok.line, tok)
		}
		ids = append(ids, tok.val)
		if !t.peek().is(tPunct, ",") {
			return ids, nil
		}
		t.next()
	}
}

// attrList parses "[key = value, flag, ...]".
func (t *translator) attrList() ([]attr, error) {
	if err := t.expect(tPunct, "["); err != nil {
		return nil, err
	}
	var attrs []attr
	for {
		tok := t.next()
		switch {
		case tok.is(tPunct, "]"):
			return attrs, nil
		case tok.is(tPunct, ",") || tok.is(tPunct, ";"):
			continue
		case tok.kind == tIdent || tok.kind == tString:
			a := attr{key: strings.ToLower(tok.val)}
			if t.peek().is(tPunct, "=") {
				t.next()
				val, err := t.value()
				if err != nil {
					return nil, err
				}
				a.val = val
			}
			attrs = append(attrs, a)
		default:
			return nil, fmt.Errorf("line %d: unexpected %s in attribute list", tok.line, tok)
		}
	}
}

// expandClasses replaces class = name with the attributes of that class.
func (t *translator) expandClasses(attrs []attr) []attr {
	var out []attr
	for _, a := range attrs {
		if a.key == "class" {
			out = append(out, t.classes[a.val]...)
			continue
		}
		out = append(out, a)
	}
	return out
}

// =============================================================================
// Attribute mapping
// =============================================================================

func (t *translator) nodeSet(attrs []attr) *attrSet {
	set := newAttrSet()
	var styles []string
	for _, a := range t.expandClasses(attrs) {
		switch a.key {
		case "label", "href", "fontsize":
			set.set(a.key, a.val)
		case "color":
			set.set("fillcolor", a.val)
		case "textcolor":
			set.set("fontcolor", a.val)
		case "linecolor":
			set.set("color", a.val)
		case "shape":
			shape, style := mapShape(a.val)
			set.set("shape", shape)
			if style != "" {
				styles = append(styles, style)
			}
		case "style":
			if s := strings.ToLower(a.val); s == "dotted" || s == "dashed" {
				styles = append(styles, s)
			}
		case "width", "height":
			if in, ok := pxToInches(a.val); ok {
				set.set(a.key, in)
			}
		case "numbered":
			set.set("xlabel", a.val)
		case "stacked":
			set.set("peripheries", "2")
		case "fontfamily":
			if t.opts.Fonts != nil {
				if file, ok := t.opts.Fonts.Lookup(a.val); ok {
					name, _ := fontRef(file)
					set.set("fontname", name)
				}
			}
		}
	}
	if len(styles) > 0 {
		set.set("style", strings.Join(append([]string{"filled"}, styles...), ","))
	}
	return set
}

func (t *translator) edgeSet(set *attrSet, attrs []attr) {
	for _, a := range t.expandClasses(attrs) {
		switch a.key {
		case "label", "color", "fontsize":
			set.set(a.key, a.val)
		case "textcolor":
			set.set("fontcolor", a.val)
		case "style":
			switch s := strings.ToLower(a.val); s {
			case "dotted", "dashed", "solid":
				set.set("style", s)
			case "none":
				set.set("style", "invis")
			}
		case "dir":
			switch d := strings.ToLower(a.val); d {
			case "none", "forward", "back", "both":
				set.set("dir", d)
			}
		case "thick":
			set.set("penwidth", "3")
		case "hstyle":
			switch strings.ToLower(a.val) {
			case "generalization":
				set.set("arrowhead", "empty")
			case "composition":
				set.set("arrowhead", "diamond")
			case "aggregation":
				set.set("arrowhead", "odiamond")
			}
		}
	}
}

func edgeOpAttrs(set *attrSet, op string) {
	switch op {
	case "<-", "<--":
		set.set("dir", "back")
	case "<->", "<-->":
		set.set("dir", "both")
	case "--":
		set.set("dir", "none")
	}
	if op == "-->" || op == "<--" || op == "<-->" {
		set.set("style", "dashed")
	}
}

func (t *translator) diagramAttr(key, val string) {
	switch strings.ToLower(key) {
	case "orientation":
		if strings.EqualFold(val, "portrait") {
			t.graphAttrs.set("rankdir", "TB")
		} else {
			t.graphAttrs.set("rankdir", "LR")
		}
	case "node_width":
		if in, ok := pxToInches(val); ok {
			t.nodeAttrs.set("width", in)
		}
	case "node_height":
		if in, ok := pxToInches(val); ok {
			t.nodeAttrs.set("height", in)
		}
	case "span_width":
		if in, ok := pxToInches(val); ok {
			t.graphAttrs.set("ranksep", in)
		}
	case "span_height":
		if in, ok := pxToInches(val); ok {
			t.graphAttrs.set("nodesep", in)
		}
	case "default_fontsize":
		t.nodeAttrs.set("fontsize", val)
		t.edgeAttrs.set("fontsize", val)
	case "default_shape":
		shape, style := mapShape(val)
		t.nodeAttrs.set("shape", shape)
		if style != "" {
			t.nodeAttrs.set("style", "filled,"+style)
		}
	case "default_node_color":
		t.nodeAttrs.set("fillcolor", val)
	case "default_textcolor":
		t.nodeAttrs.set("fontcolor", val)
		t.edgeAttrs.set("fontcolor", val)
	case "default_linecolor":
		t.nodeAttrs.set("color", val)
		t.edgeAttrs.set("color", val)
	case "default_group_color":
		t.groupColor = val
	case "default_fontfamily":
		if t.opts.Fonts != nil {
			if file, ok := t.opts.Fonts.Lookup(val); ok {
				name, _ := fontRef(file)
				t.nodeAttrs.set("fontname", name)
				t.edgeAttrs.set("fontname", name)
			}
		}
	}
}

func (t *translator) groupAttr(out *strings.Builder, key, val string) {
	switch strings.ToLower(key) {
	case "label":
		fmt.Fprintf(out, "  label=%s;\n", quote(val))
	case "color":
		fmt.Fprintf(out, "  fillcolor=%s;\n", quote(val))
	case "textcolor":
		fmt.Fprintf(out, "  fontcolor=%s;\n", quote(val))
	case "fontsize":
		fmt.Fprintf(out, "  fontsize=%s;\n", quote(val))
	case "shape":
		if strings.EqualFold(val, "line") {
			out.WriteString("  style=\"dashed\"; color=\"black\";\n")
		}
	}
}

// shapes maps blockdiag node shapes to Graphviz shapes.
var shapes = map[string]string{
	"box":                  "box",
	"square":               "square",
	"roundedbox":           "box",
	"diamond":              "diamond",
	"minidiamond":          "diamond",
	"ellipse":              "ellipse",
	"circle":               "circle",
	"note":                 "note",
	"mail":                 "box",
	"cloud":                "ellipse",
	"actor":                "box",
	"beginpoint":           "circle",
	"endpoint":             "doublecircle",
	"dots":                 "plaintext",
	"none":                 "plaintext",
	"textbox":              "plaintext",
	"flowchart.condition":  "diamond",
	"flowchart.database":   "cylinder",
	"flowchart.input":      "parallelogram",
	"flowchart.loopin":     "trapezium",
	"flowchart.loopout":    "invtrapezium",
	"flowchart.terminator": "box",
}

// mapShape returns the Graphviz shape and an extra style for a blockdiag
// shape name.
func mapShape(name string) (shape, style string) {
	name = strings.ToLower(name)
	shape, ok := shapes[name]
	if !ok {
		return "box", ""
	}
	if name == "roundedbox" || name == "flowchart.terminator" {
		style = "rounded"
	}
	return shape, style
}

// pxToInches converts a blockdiag pixel size to Graphviz inches.
func pxToInches(val string) (string, bool) {
	px, err := strconv.ParseFloat(val, 64)
	if err != nil || px <= 0 {
		return "", false
	}
	return strconv.FormatFloat(px/72, 'f', 2, 64), true
}

// fontRef splits a font file into the Graphviz font name and directory.
func fontRef(file string) (name, dir string) {
	if file == "" {
		return "", ""
	}
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base)), filepath.Dir(file)
}

func endpoint(ids []string) string {
	if len(ids) == 1 {
		return quote(ids[0])
	}
	q := make([]string, len(ids))
	for i, id := range ids {
		q[i] = quote(id)
	}
	return "{" + strings.Join(q, " ") + "}"
}

// quote wraps a DOT-ready string in double quotes.
func quote(s string) string {
	return `"` + s + `"`
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString("  ")
			b.WriteString(l)
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
