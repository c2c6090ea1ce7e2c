package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/diagram"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/observability"
)

const diagramDoc = "# Intro\n\n```blockdiag\nblockdiag {\n  A -> B;\n  A [href = \":ref:`intro`\"];\n}\n```\n"

func writeProject(t *testing.T, conf string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files[config.FileName] = conf
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return dir
}

const projectConfig = `
source = "docs"
output = "out"

[project]
title = "Handbook"
`

func TestBuild(t *testing.T) {
	dir := writeProject(t, projectConfig, map[string]string{
		"docs/index.md":       diagramDoc,
		"docs/guide/usage.md": "# Usage\n\nSee the intro.\n",
	})
	runner := NewRunner(nil, nil, nil)

	res, err := runner.Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)

	_, err = uuid.Parse(res.BuildID)
	assert.NoError(t, err, "build id should be a uuid")
	assert.Equal(t, config.BuilderHTML, res.Builder)
	assert.Equal(t, filepath.Join(dir, "out"), res.OutDir)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, res.Diagrams)
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 0, res.Cached)
	assert.Equal(t, 0, res.Warnings)
	assert.Positive(t, res.Duration)

	assert.FileExists(t, filepath.Join(dir, "out", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "out", "guide", "usage.html"))
	assert.DirExists(t, filepath.Join(dir, "out", CacheDirName))
	images, _ := filepath.Glob(filepath.Join(dir, "out", "_images", "blockdiag-*.png"))
	assert.Len(t, images, 1)

	again, err := runner.Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	assert.NotEqual(t, res.BuildID, again.BuildID)
	assert.Equal(t, 0, again.Rendered, "unchanged diagrams are reused")
	assert.Equal(t, 1, again.Cached)
}

func TestBuildTamperedImageWarns(t *testing.T) {
	dir := writeProject(t, projectConfig, map[string]string{"docs/index.md": diagramDoc})
	runner := NewRunner(nil, nil, nil)

	_, err := runner.Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	images, _ := filepath.Glob(filepath.Join(dir, "out", "_images", "blockdiag-*.png"))
	require.Len(t, images, 1)
	require.NoError(t, os.WriteFile(images[0], []byte("not a png"), 0644))

	res, err := runner.Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Warnings, "digest mismatch is a build warning")
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 0, res.Cached)
}

func TestBuildClean(t *testing.T) {
	dir := writeProject(t, projectConfig, map[string]string{"docs/index.md": diagramDoc})
	runner := NewRunner(nil, nil, nil)

	_, err := runner.Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	stale := filepath.Join(dir, "out", "stale.html")
	require.NoError(t, os.WriteFile(stale, nil, 0644))

	res, err := runner.Build(context.Background(), Options{Dir: dir, Clean: true})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.Equal(t, 1, res.Rendered)
}

func TestBuildBuilderOverride(t *testing.T) {
	dir := writeProject(t, projectConfig, map[string]string{"docs/index.md": diagramDoc})

	res, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir, Builder: "TEXT"})
	require.NoError(t, err)
	assert.Equal(t, config.BuilderText, res.Builder)
	assert.FileExists(t, filepath.Join(dir, "out", "index.txt"))

	_, err = NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir, Builder: "epub"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestBuildOverrides(t *testing.T) {
	dir := writeProject(t, projectConfig, map[string]string{"docs/index.md": diagramDoc})

	res, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{
		Dir:       dir,
		Overrides: map[string]any{"blockdiag_html_image_format": "SVG"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered)

	page, err := os.ReadFile(filepath.Join(dir, "out", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<svg")
}

func TestBuildUnsupportedImageFormat(t *testing.T) {
	dir := writeProject(t, "blockdiag_html_image_format = \"BMP\"\n"+projectConfig, map[string]string{
		"docs/index.md": diagramDoc,
	})

	res, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err, "diagram failures are warnings")
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Warnings)
}

func TestBuildUnknownExtension(t *testing.T) {
	dir := writeProject(t, "extensions = [\"seqdiag\"]\n"+projectConfig, map[string]string{
		"docs/index.md": "# Intro\n",
	})
	_, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
	assert.Contains(t, err.Error(), "seqdiag")
}

func TestBuildMissingSource(t *testing.T) {
	dir := writeProject(t, "source = \"nowhere\"\noutput = \"out\"\n", map[string]string{})
	_, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir})
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestCacheDir(t *testing.T) {
	cfg := config.Default()
	cfg.Output = "build"
	assert.Equal(t, filepath.Join("build", CacheDirName), CacheDir(cfg))

	cfg.Cache.Dir = "/var/cache/docdiag"
	assert.Equal(t, "/var/cache/docdiag", CacheDir(cfg))
}

func TestOpenCache(t *testing.T) {
	cfg := config.Default()
	cfg.Output = t.TempDir()

	c, err := OpenCache(cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.DirExists(t, CacheDir(cfg))

	cfg.Cache.Backend = "memcached"
	_, err = OpenCache(cfg)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestExtensionNames(t *testing.T) {
	assert.Equal(t, []string{"blockdiag"}, ExtensionNames())
}

type recordingHooks struct {
	observability.NoopBuildHooks
	mu       sync.Mutex
	started  []string
	finished []string
	docs     int
}

func (h *recordingHooks) OnBuildStart(_ context.Context, id, builder string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, id+" "+builder)
}

func (h *recordingHooks) OnBuildComplete(_ context.Context, id string, documents int, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, id)
	h.docs = documents
}

func TestBuildHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetBuildHooks(hooks)
	t.Cleanup(observability.Reset)

	dir := writeProject(t, projectConfig, map[string]string{"docs/index.md": "# Intro\n"})
	res, err := NewRunner(nil, nil, nil).Build(context.Background(), Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{res.BuildID + " html"}, hooks.started)
	assert.Equal(t, []string{res.BuildID}, hooks.finished)
	assert.Equal(t, 1, hooks.docs)
}

func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "flow.svg")
	runner := NewRunner(nil, nil, nil)

	a, err := runner.Render(context.Background(), RenderOptions{
		Source:  "blockdiag { A -> B -> C }",
		Format:  "svg",
		OutPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, out, a.Path)
	assert.Equal(t, diagram.SVG, a.Format)
	assert.Positive(t, a.Width)
	assert.False(t, a.Cached)
	assert.FileExists(t, out)

	// An existing file is replaced.
	a, err = runner.Render(context.Background(), RenderOptions{
		Source:   "blockdiag { X -> Y }",
		Format:   "png",
		OutPath:  out,
		MaxWidth: 10,
	})
	require.NoError(t, err)
	assert.False(t, a.Cached)
	require.NotNil(t, a.Thumb)
	assert.Equal(t, float64(10), a.Thumb.Width)
}

func TestRenderKeepsExternalLinks(t *testing.T) {
	out := filepath.Join(t.TempDir(), "flow.svg")
	runner := NewRunner(nil, nil, nil)

	_, err := runner.Render(context.Background(), RenderOptions{
		Source:  "blockdiag { A -> B; A [href = \":ref:`intro`\"]; B [href = \"https://example.com/b\"]; }",
		Format:  "svg",
		OutPath: out,
	})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), ":ref:")
	assert.Contains(t, string(data), `xlink:href="https://example.com/b"`)
}

func TestRenderErrors(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	out := filepath.Join(t.TempDir(), "x.bmp")

	_, err := runner.Render(context.Background(), RenderOptions{Source: "blockdiag { A }", Format: "BMP", OutPath: out})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
	assert.Contains(t, err.Error(), "BMP")

	_, err = runner.Render(context.Background(), RenderOptions{Source: "blockdiag { A -> ", Format: "png", OutPath: out})
	assert.True(t, errors.Is(err, errors.ErrCodeDiagram))

	_, err = runner.Render(context.Background(), RenderOptions{Source: "blockdiag { A }", Format: "png"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))

	_, err = runner.Render(context.Background(), RenderOptions{
		Source: "blockdiag { A }", Format: "png", OutPath: out, FontPath: []string{"/no/such/font.ttf"},
	})
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}
