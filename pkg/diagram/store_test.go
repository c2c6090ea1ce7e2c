package diagram

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/docdiag/pkg/cache"
)

func newFileStore(t *testing.T, verify bool) *Store {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(c, nil, verify, nil)
}

func TestStoreVerified(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t, true)
	path := filepath.Join(t.TempDir(), "blockdiag-abc.svg")

	if _, ok := s.Lookup(ctx, path, SVG, false); ok {
		t.Fatal("missing file should miss")
	}

	if err := os.WriteFile(path, loadFixture(t), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Lookup(ctx, path, SVG, false); ok {
		t.Error("file without index entry should miss when verifying")
	}

	if err := s.Put(ctx, &Artifact{Path: path, Format: SVG, Width: 10, Height: 20}, false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	a, ok := s.Lookup(ctx, path, SVG, false)
	if !ok {
		t.Fatal("indexed file should hit")
	}
	if !a.Cached || a.Width != 10 || a.Height != 20 {
		t.Errorf("Lookup = %+v, want cached 10x20 from the index", a)
	}

	if _, ok := s.Lookup(ctx, path, SVG, true); ok {
		t.Error("thumbnail entries are indexed separately")
	}

	var warned []string
	s.SetWarner(func(msg string, _ ...any) { warned = append(warned, msg) })
	if err := os.WriteFile(path, []byte("<svg width=\"1\" height=\"1\"></svg>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Lookup(ctx, path, SVG, false); ok {
		t.Error("modified file should miss")
	}
	if len(warned) != 1 || warned[0] != "image digest mismatch, re-rendering" {
		t.Errorf("warnings = %q, want one digest mismatch", warned)
	}
}

func TestStoreUnverified(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil, false, nil)
	path := filepath.Join(t.TempDir(), "blockdiag-abc.svg")
	if err := os.WriteFile(path, loadFixture(t), 0644); err != nil {
		t.Fatal(err)
	}

	a, ok := s.Lookup(ctx, path, SVG, false)
	if !ok {
		t.Fatal("existing file should hit without verification")
	}
	if !approx(a.Width, 254*4.0/3) || !approx(a.Height, 64) {
		t.Errorf("size = %vx%v, want measured from file", a.Width, a.Height)
	}
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "a.png")
	writeTestPNG(t, pngPath, 40, 30)
	if w, h, err := measure(pngPath, PNG); err != nil || w != 40 || h != 30 {
		t.Errorf("measure png = %vx%v (%v), want 40x30", w, h, err)
	}

	pdfPath := filepath.Join(dir, "a.pdf")
	os.WriteFile(pdfPath, []byte("%PDF-1.5\n1 0 obj << /Type /Page /MediaBox [ 0 0 254 48 ] >>\n"), 0644)
	if w, h, err := measure(pdfPath, PDF); err != nil || w != 254 || h != 48 {
		t.Errorf("measure pdf = %vx%v (%v), want 254x48", w, h, err)
	}

	if _, _, err := measure(pngPath, SVG); err == nil {
		t.Error("measuring a png as svg should fail")
	}
}
