package text

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

func convert(t *testing.T, src string) string {
	t.Helper()
	md := goldmark.New(goldmark.WithRenderer(renderer.NewRenderer(
		renderer.WithNodeRenderers(util.Prioritized(NewRenderer(), 1000)),
	)))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestRenderer(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"second level", "## Über\n", "Über\n----\n"},
		{"code span", "run `make`\n", `run "make"`},
		{"image with alt", "![Overview](blockdiag-abc.png)\n", "[image: Overview]"},
		{"image without alt", "![](blockdiag-abc.png)\n", "[image: blockdiag-abc.png]"},
		{"autolink", "<https://example.com>\n", "https://example.com"},
		{"link equal to text", "[https://a.b](https://a.b)\n", "https://a.b\n"},
		{"code block", "```\nx := 1\n```\n", "    x := 1\n"},
		{"nested list", "- a\n  - b\n", "* a\n  * b\n"},
		{"strong", "**s**\n", "**s**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convert(t, tt.src); !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestRendererResetsBetweenDocuments(t *testing.T) {
	md := goldmark.New(goldmark.WithRenderer(renderer.NewRenderer(
		renderer.WithNodeRenderers(util.Prioritized(NewRenderer(), 1000)),
	)))
	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if err := md.Convert([]byte("3. c\n4. d\n"), &buf); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(buf.String(), "3. c\n4. d\n") {
			t.Errorf("run %d: got %q", i, buf.String())
		}
	}
}
