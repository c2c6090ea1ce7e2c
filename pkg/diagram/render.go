package diagram

import (
	"bytes"
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/observability"
)

// Graphviz draws bitmaps at 96 dpi; antialiased output is drawn at twice
// that and downsampled.
const (
	baseDPI      = 96
	antialiasDPI = 2 * baseDPI
)

// Renderer draws diagrams into image files.
type Renderer struct {
	settings Settings
	store    *Store
	logger   *log.Logger
	passes   atomic.Int64
}

// NewRenderer creates a renderer. A nil store disables reuse of existing
// files beyond their presence on disk.
func NewRenderer(settings Settings, store *Store, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if store == nil {
		store = NewStore(nil, nil, false, logger)
	}
	return &Renderer{settings: settings, store: store, logger: logger}
}

// Passes returns how many images the renderer has drawn.
func (r *Renderer) Passes() int {
	return int(r.passes.Load())
}

// ImageFilename is [ImageFilename] with the renderer's settings folded into
// the key.
func (r *Renderer) ImageFilename(b Target, source string, format Format, opts Options, prefix string) (string, string, error) {
	opts.Fingerprint = r.settings.Fingerprint()
	return ImageFilename(b, source, format, opts, prefix)
}

// Render writes d to outPath in the given format, unless a reusable copy
// is already there. When opts.MaxWidth is below the image width a
// thumbnail is produced next to it (except for PDF). SVG and PDF files
// carry the node links of opts.Links.
func (r *Renderer) Render(ctx context.Context, d *Diagram, format Format, outPath string, opts Options) (*Artifact, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	hooks := observability.Build()
	hooks.OnRenderStart(ctx, string(format), outPath)
	start := time.Now()

	a, ok := r.store.Lookup(ctx, outPath, format, false)
	if !ok {
		a, err = r.draw(ctx, d, format, outPath, opts.Links)
		if err != nil {
			hooks.OnRenderComplete(ctx, string(format), outPath, false, time.Since(start), err)
			return nil, err
		}
	}
	hooks.OnRenderComplete(ctx, string(format), outPath, a.Cached, time.Since(start), nil)

	if opts.MaxWidth > 0 && float64(opts.MaxWidth) < a.Width && format != PDF {
		thumb, err := r.Thumbnail(ctx, d, a, ThumbPath(outPath), opts)
		if err != nil {
			return nil, err
		}
		a.Thumb = thumb
	}
	return a, nil
}

// Thumbnail writes a copy of full scaled to opts.MaxWidth. PNG thumbnails
// are resampled; SVG thumbnails keep the drawing and change the root size.
// PDF has no thumbnails and yields nil.
func (r *Renderer) Thumbnail(ctx context.Context, d *Diagram, full *Artifact, outPath string, opts Options) (*Artifact, error) {
	if full.Format == PDF {
		return nil, nil
	}
	if a, ok := r.store.Lookup(ctx, outPath, full.Format, true); ok {
		return a, nil
	}

	maxWidth := opts.MaxWidth
	width := float64(maxWidth)
	height := full.Height * width / full.Width

	var data []byte
	switch full.Format {
	case PNG:
		img, err := imaging.Open(full.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s", full.Path)
		}
		thumb := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode thumbnail")
		}
		data = buf.Bytes()
		height = float64(thumb.Bounds().Dy())
	case SVG:
		data = SetSize(RewriteLinks(d.SVG, opts.Links), width, height)
	}

	if err := writeFile(outPath, data); err != nil {
		return nil, err
	}
	a := &Artifact{Path: outPath, Format: full.Format, Width: width, Height: height}
	if err := r.store.Put(ctx, a, true); err != nil {
		r.logger.Debug("artifact index write failed", "path", outPath, "err", err)
	}
	return a, nil
}

func (r *Renderer) draw(ctx context.Context, d *Diagram, format Format, outPath string, links map[string]string) (*Artifact, error) {
	a := &Artifact{Path: outPath, Format: format}

	var data []byte
	switch format {
	case SVG:
		data = RewriteLinks(d.SVG, links)
		a.Width, a.Height = d.Width*4/3, d.Height*4/3
	case PNG:
		png, err := r.drawPNG(ctx, d)
		if err != nil {
			return nil, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
		}
		data = png
		a.Width, a.Height = float64(cfg.Width), float64(cfg.Height)
	case PDF:
		pdf, err := svgToPDF(ctx, RewriteLinks(d.SVG, links))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnsupported, err, "could not output PDF format")
		}
		data = pdf
		a.Width, a.Height = d.Width, d.Height
	}

	if err := writeFile(outPath, data); err != nil {
		return nil, err
	}
	r.passes.Add(1)
	if err := r.store.Put(ctx, a, false); err != nil {
		r.logger.Debug("artifact index write failed", "path", outPath, "err", err)
	}
	return a, nil
}

func (r *Renderer) drawPNG(ctx context.Context, d *Diagram) ([]byte, error) {
	if !r.settings.Antialias || d.Source == "" {
		png, err := renderDOT(ctx, d.DOT, graphviz.PNG)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
		}
		return png, nil
	}

	dot, err := Translate(d.Source, TranslateOptions{Fonts: r.settings.Fonts, DPI: antialiasDPI})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
	}
	png, err := renderDOT(ctx, dot, graphviz.PNG)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
	}
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiagram, err, "blockdiag error")
	}
	small := imaging.Resize(img, img.Bounds().Dx()/2, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}

// ThumbPath returns the thumbnail path for an image path produced by
// [ImageFilename]: "<prefix>-<key>.<ext>" becomes "<prefix>_thumb-<key>.<ext>".
func ThumbPath(outPath string) string {
	dir, base := filepath.Split(outPath)
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return filepath.Join(dir, "thumb_"+base)
	}
	return filepath.Join(dir, ThumbPrefix(base[:i])+base[i:])
}

// writeFile writes data through a temporary file so readers never see a
// partial image.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create image directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".img-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}
