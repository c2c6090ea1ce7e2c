package diagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docdiag/pkg/cache"
	"github.com/matzehuels/docdiag/pkg/observability"
)

// Artifact is a rendered image file.
type Artifact struct {
	Path   string  `json:"path"`
	Format Format  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Cached is set when the file was reused from an earlier build.
	Cached bool `json:"-"`
	// Thumb is the reduced image for max-width diagrams, if any.
	Thumb *Artifact `json:"-"`
}

// record is the artifact index entry.
type record struct {
	Digest string  `json:"digest"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Store is the artifact index: it remembers the SHA-256 digest and size of
// every image written to the output tree so that later builds can reuse
// the files.
type Store struct {
	cache  cache.Cache
	keyer  cache.Keyer
	verify bool
	logger *log.Logger
	warn   func(msg string, keyvals ...any)
}

// NewStore creates a store. With verify set, an existing file is reused
// only if its digest matches the index; otherwise its mere presence is
// enough.
func NewStore(c cache.Cache, keyer cache.Keyer, verify bool, logger *log.Logger) *Store {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{cache: c, keyer: keyer, verify: verify, logger: logger, warn: logWarn(logger)}
}

// SetWarner routes the re-render warnings of Lookup to fn.
func (s *Store) SetWarner(fn func(msg string, keyvals ...any)) {
	if fn == nil {
		fn = logWarn(s.logger)
	}
	s.warn = fn
}

// logWarn adapts logger.Warn to the warner signature.
func logWarn(logger *log.Logger) func(msg string, keyvals ...any) {
	return func(msg string, keyvals ...any) { logger.Warn(msg, keyvals...) }
}

func (s *Store) key(path string, format Format, thumb bool) string {
	return s.keyer.ArtifactKey(filepath.Base(path), cache.ArtifactKeyOpts{Format: string(format), Thumbnail: thumb})
}

// Lookup returns the artifact at path if it can be reused.
func (s *Store) Lookup(ctx context.Context, path string, format Format, thumb bool) (*Artifact, bool) {
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}

	var rec *record
	if data, hit, err := s.cache.Get(ctx, s.key(path, format, thumb)); err == nil && hit {
		var r record
		if json.Unmarshal(data, &r) == nil {
			rec = &r
		}
	}

	if s.verify {
		if rec == nil {
			s.warn("image not in artifact index, re-rendering", "path", path)
			observability.Cache().OnCacheMiss(ctx, "artifact")
			return nil, false
		}
		digest, err := fileDigest(path)
		if err != nil || digest != rec.Digest {
			s.warn("image digest mismatch, re-rendering", "path", path)
			observability.Cache().OnCacheMiss(ctx, "artifact")
			return nil, false
		}
	}

	a := &Artifact{Path: path, Format: format, Cached: true}
	if rec != nil && rec.Width > 0 {
		a.Width, a.Height = rec.Width, rec.Height
	} else {
		w, h, err := measure(path, format)
		if err != nil {
			observability.Cache().OnCacheMiss(ctx, "artifact")
			return nil, false
		}
		a.Width, a.Height = w, h
	}
	observability.Cache().OnCacheHit(ctx, "artifact")
	return a, true
}

// Put records a freshly written artifact.
func (s *Store) Put(ctx context.Context, a *Artifact, thumb bool) error {
	digest, err := fileDigest(a.Path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record{Digest: digest, Width: a.Width, Height: a.Height})
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, s.key(a.Path, a.Format, thumb), data, 0); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	return nil
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}

var mediaBoxRe = regexp.MustCompile(`/MediaBox\s*\[\s*([-0-9.]+)\s+([-0-9.]+)\s+([-0-9.]+)\s+([-0-9.]+)\s*\]`)

// measure reads the size of an image file: pixels for PNG, CSS pixels for
// SVG and points for PDF.
func measure(path string, format Format) (float64, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	switch format {
	case PNG:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return 0, 0, err
		}
		return float64(cfg.Width), float64(cfg.Height), nil
	case SVG:
		w, h := svgSize(data)
		if w == 0 || h == 0 {
			return 0, 0, fmt.Errorf("%s: no svg size", path)
		}
		return w, h, nil
	case PDF:
		m := mediaBoxRe.FindSubmatch(data)
		if m == nil {
			return 0, 0, fmt.Errorf("%s: no MediaBox", path)
		}
		x1, _ := strconv.ParseFloat(string(m[1]), 64)
		y1, _ := strconv.ParseFloat(string(m[2]), 64)
		x2, _ := strconv.ParseFloat(string(m[3]), 64)
		y2, _ := strconv.ParseFloat(string(m[4]), 64)
		return x2 - x1, y2 - y1, nil
	}
	return 0, 0, fmt.Errorf("unknown format: %s", format)
}
