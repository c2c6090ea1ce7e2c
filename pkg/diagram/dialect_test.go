package diagram

import (
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
		absent []string
	}{
		{
			name:   "named diagram",
			source: "blockdiag admin { A -> B }",
			want:   []string{`digraph "admin" {`, `"A" -> "B";`},
		},
		{
			name:   "keyword optional",
			source: "{ A -> B }",
			want:   []string{"digraph {", `"A" -> "B";`},
		},
		{
			name:   "node colors",
			source: `blockdiag { A [color = "#FF0000", textcolor = red, linecolor = blue]; }`,
			want:   []string{`"A" [fillcolor="#FF0000", fontcolor="red", color="blue"];`},
		},
		{
			name:   "edge color stays color",
			source: `blockdiag { A -> B [color = red, label = "go"]; }`,
			want:   []string{`"A" -> "B" [color="red", label="go"];`},
		},
		{
			name:   "edge chain with fan-out",
			source: "blockdiag { A -> B, C -> D; }",
			want:   []string{`"A" -> {"B" "C"} -> "D";`},
		},
		{
			name:   "reverse edge",
			source: "blockdiag { A <- B; }",
			want:   []string{`"A" -> "B" [dir="back"];`},
		},
		{
			name:   "undirected dashed edge",
			source: "blockdiag { A -- B; C <--> D; }",
			want:   []string{`"A" -> "B" [dir="none"];`, `"C" -> "D" [dir="both", style="dashed"];`},
		},
		{
			name:   "edge flags",
			source: "blockdiag { A -> B [thick, folded, hstyle = composition]; }",
			want:   []string{`"A" -> "B" [penwidth="3", arrowhead="diamond"];`},
			absent: []string{"folded"},
		},
		{
			name:   "portrait orientation",
			source: "blockdiag { orientation = portrait; A -> B; }",
			want:   []string{`rankdir="TB"`},
			absent: []string{`rankdir="LR"`},
		},
		{
			name:   "diagram attributes apply before nodes",
			source: "blockdiag { A -> B; default_fontsize = 14; node_width = 144; }",
			want:   []string{`fontsize="14", width="2.00"`},
		},
		{
			name:   "rounded box",
			source: "blockdiag { A [shape = roundedbox]; }",
			want:   []string{`"A" [shape="box", style="filled,rounded"];`},
		},
		{
			name:   "unknown shape falls back to box",
			source: "blockdiag { A [shape = hexagon3d]; }",
			want:   []string{`"A" [shape="box"];`},
		},
		{
			name:   "numbered node",
			source: "blockdiag { A [numbered = 1]; }",
			want:   []string{`"A" [xlabel="1"];`},
		},
		{
			name:   "href kept raw",
			source: "blockdiag { A [href = \":ref:`intro`\"]; }",
			want:   []string{"\"A\" [href=\":ref:`intro`\"];"},
		},
		{
			name:   "classes",
			source: "blockdiag { class emphasis [color = pink, style = dashed]; A [class = emphasis]; }",
			want:   []string{`"A" [fillcolor="pink", style="filled,dashed"];`},
			absent: []string{"emphasis"},
		},
		{
			name:   "group",
			source: `blockdiag { A -> B; group { label = "G"; color = "#77FF77"; B; C } }`,
			want: []string{
				`subgraph "cluster_1" {`,
				`label="G";`,
				`fillcolor="#77FF77";`,
				`"C";`,
			},
		},
		{
			name:   "comments",
			source: "blockdiag {\n  // line comment\n  /* block\n comment */\n  A; # shell comment\n}",
			want:   []string{`"A";`},
			absent: []string{"comment"},
		},
		{
			name:   "single quoted string",
			source: `blockdiag { A [label = 'say "hi"']; }`,
			want:   []string{`"A" [label="say \"hi\""];`},
		},
		{
			name:   "unicode ids",
			source: "blockdiag { 開始 -> 終了 }",
			want:   []string{`"開始" -> "終了";`},
		},
		{
			name:   "dropped attributes",
			source: `blockdiag { A [background = "x.png", description = "d"]; }`,
			want:   []string{`"A";`},
			absent: []string{"background", "description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dot, err := Translate(tt.source, TranslateOptions{})
			if err != nil {
				t.Fatalf("Translate: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(dot, w) {
					t.Errorf("output missing %s\n%s", w, dot)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(dot, a) {
					t.Errorf("output should not contain %s\n%s", a, dot)
				}
			}
		})
	}
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"missing brace", "blockdiag { A -> B", "missing closing brace"},
		{"dangling edge", "blockdiag { A -> }", "expected node id"},
		{"no body", "blockdiag A -> B", `expected "{"`},
		{"unterminated string", `blockdiag { A [label = "x }`, "unterminated string"},
		{"unterminated comment", "blockdiag { /* A }", "unterminated comment"},
		{"trailing input", "blockdiag { A } B", "after diagram"},
		{"nested group", "blockdiag { group { group { A } } }", "nested groups"},
		{"bad character", "blockdiag { A @ B }", "unexpected character"},
		{"error line", "blockdiag {\n  A;\n  B -> ;\n}", "line 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.source, TranslateOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestTranslateFonts(t *testing.T) {
	fonts := NewFontMap()
	fonts.Families["serif"] = "/fonts/serif/DejaVuSerif.ttf"
	fonts.SetDefaultFont("/fonts/sans/DejaVuSans.ttf")

	dot, err := Translate(`blockdiag { A [fontfamily = "serif-bold"]; }`, TranslateOptions{Fonts: fonts})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	for _, want := range []string{
		`fontname="DejaVuSans"`,
		`fontpath="/fonts/sans:/fonts/serif"`,
		`"A" [fontname="DejaVuSerif"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("output missing %s\n%s", want, dot)
		}
	}
}

func TestTranslateDPI(t *testing.T) {
	dot, err := Translate(`blockdiag "graph [x" { A -> B; }`, TranslateOptions{DPI: 192})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !strings.HasPrefix(dot, "digraph \"graph [x\" {\n") {
		t.Errorf("diagram name changed:\n%s", dot)
	}
	if !strings.Contains(dot, `dpi="192"`) {
		t.Errorf("output missing dpi\n%s", dot)
	}

	plain, err := Translate(`blockdiag { A -> B; }`, TranslateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(plain, "dpi") {
		t.Errorf("dpi set without being asked for\n%s", plain)
	}
}
