package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports build, cache and HTTP events as debug log lines.
// It implements BuildHooks, CacheHooks and HTTPHooks.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks writing to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnBuildStart(_ context.Context, buildID, builder string) {
	h.logger.Debug("build started", "id", buildID, "builder", builder)
}

func (h *LogHooks) OnBuildComplete(_ context.Context, buildID string, documents int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("build failed", "id", buildID, "duration", d, "err", err)
		return
	}
	h.logger.Debug("build finished", "id", buildID, "documents", documents, "duration", d)
}

func (h *LogHooks) OnDiagramStart(_ context.Context, key string) {
	h.logger.Debug("laying out diagram", "key", shortKey(key))
}

func (h *LogHooks) OnDiagramComplete(_ context.Context, key string, nodeCount int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("diagram failed", "key", shortKey(key), "err", err)
		return
	}
	h.logger.Debug("diagram laid out", "key", shortKey(key), "nodes", nodeCount, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, format, path string) {
	h.logger.Debug("rendering", "format", format, "path", path)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, format, path string, cached bool, d time.Duration, err error) {
	switch {
	case err != nil:
		h.logger.Debug("render failed", "format", format, "path", path, "err", err)
	case cached:
		h.logger.Debug("render skipped (cached)", "path", path)
	default:
		h.logger.Debug("rendered", "format", format, "path", path, "duration", d)
	}
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "size", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Info("http", "method", method, "path", path, "status", status, "duration", d)
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

var (
	_ BuildHooks = (*LogHooks)(nil)
	_ CacheHooks = (*LogHooks)(nil)
	_ HTTPHooks  = (*LogHooks)(nil)
)
