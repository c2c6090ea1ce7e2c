package diagram

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/docdiag/pkg/cache"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func fixtureDiagram(t *testing.T) *Diagram {
	t.Helper()
	svg := loadFixture(t)
	d, err := parseSVG(svg)
	if err != nil {
		t.Fatal(err)
	}
	d.SVG = svg
	return d
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewRenderer(Settings{}, NewStore(c, nil, true, nil), nil)
}

func TestRenderSVG(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t)
	d := fixtureDiagram(t)
	out := filepath.Join(t.TempDir(), "_images", "blockdiag-abc.svg")

	links := map[string]string{"node1": "../index.html#intro"}
	a, err := r.Render(ctx, d, SVG, out, Options{Links: links})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if a.Cached || a.Thumb != nil {
		t.Errorf("first render = %+v, want fresh without thumbnail", a)
	}
	if !approx(a.Width, 254*4.0/3) || !approx(a.Height, 64) {
		t.Errorf("size = %vx%v", a.Width, a.Height)
	}
	if data, err := os.ReadFile(out); err != nil || !bytes.Equal(data, RewriteLinks(d.SVG, links)) {
		t.Errorf("written file does not hold the linked diagram svg (%v)", err)
	}

	again, err := r.Render(ctx, d, SVG, out, Options{Links: links})
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if !again.Cached {
		t.Error("second render should reuse the file")
	}
	if r.Passes() != 1 {
		t.Errorf("Passes() = %d, want 1", r.Passes())
	}
}

func TestRenderThumbnail(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t)
	d := fixtureDiagram(t)
	out := filepath.Join(t.TempDir(), "blockdiag-abc.svg")

	a, err := r.Render(ctx, d, SVG, out, Options{MaxWidth: 100})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if a.Thumb == nil {
		t.Fatal("expected a thumbnail")
	}
	if a.Thumb.Path != filepath.Join(filepath.Dir(out), "blockdiag_thumb-abc.svg") {
		t.Errorf("thumb path = %s", a.Thumb.Path)
	}
	if a.Thumb.Width != 100 || !approx(a.Thumb.Height, 64*100/(254*4.0/3)) {
		t.Errorf("thumb size = %vx%v", a.Thumb.Width, a.Thumb.Height)
	}
	data, err := os.ReadFile(a.Thumb.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`width="100px"`)) {
		t.Error("thumbnail svg should carry the reduced width")
	}
	if bytes.Contains(data, []byte("href")) {
		t.Error("thumbnail svg without links should carry no hrefs")
	}

	wide, err := r.Render(ctx, d, SVG, out, Options{MaxWidth: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if wide.Thumb != nil {
		t.Error("no thumbnail when max width exceeds the image")
	}
}

func TestThumbnailPNG(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t)
	dir := t.TempDir()
	full := filepath.Join(dir, "blockdiag-abc.png")
	writeTestPNG(t, full, 400, 200)

	thumb, err := r.Thumbnail(ctx, nil, &Artifact{Path: full, Format: PNG, Width: 400, Height: 200}, ThumbPath(full), Options{MaxWidth: 100})
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if thumb.Width != 100 || thumb.Height != 50 {
		t.Errorf("thumb size = %vx%v, want 100x50", thumb.Width, thumb.Height)
	}
	w, h, err := measure(thumb.Path, PNG)
	if err != nil || w != 100 || h != 50 {
		t.Errorf("thumb file = %vx%v (%v), want 100x50", w, h, err)
	}

	pdf, err := r.Thumbnail(ctx, nil, &Artifact{Path: full, Format: PDF}, ThumbPath(full), Options{MaxWidth: 100})
	if err != nil || pdf != nil {
		t.Errorf("PDF thumbnail = (%v, %v), want none", pdf, err)
	}
}

func TestThumbPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/out/_images/blockdiag-abc.png", "/out/_images/blockdiag_thumb-abc.png"},
		{"/out/seq-diag-abc.svg", "/out/seq-diag_thumb-abc.svg"},
		{"/out/plain.png", "/out/thumb_plain.png"},
	}
	for _, tt := range tests {
		if got := ThumbPath(tt.in); got != tt.want {
			t.Errorf("ThumbPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderAntialias(t *testing.T) {
	ctx := context.Background()
	const src = `blockdiag "graph [x" { A -> B; }`
	dir := t.TempDir()

	plain := NewEngine(EngineOptions{})
	d, err := plain.Build(ctx, src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	base, err := newTestRenderer(t).Render(ctx, d, PNG, filepath.Join(dir, "plain.png"), Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	settings := Settings{Antialias: true}
	smooth := NewEngine(EngineOptions{Settings: settings})
	d, err = smooth.Build(ctx, src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := NewRenderer(settings, NewStore(c, nil, true, nil), nil)
	a, err := r.Render(ctx, d, PNG, filepath.Join(dir, "smooth.png"), Options{})
	if err != nil {
		t.Fatalf("antialiased Render: %v", err)
	}
	if a.Width < base.Width-2 || a.Width > base.Width+2 {
		t.Errorf("antialiased width = %v, want about %v", a.Width, base.Width)
	}
	w, _, err := measure(a.Path, PNG)
	if err != nil || w != a.Width {
		t.Errorf("file width = %v (%v), want %v", w, err, a.Width)
	}
}
