package docs

import (
	"bytes"
	"context"
	"time"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// Stats summarizes a build.
type Stats struct {
	Documents int
	Warnings  int
	Duration  time.Duration
	// Counts holds the counters extensions recorded with [App.Count].
	Counts map[string]int
}

// Build writes every document of p with b. Documents are rendered one at
// a time in name order.
func (a *App) Build(ctx context.Context, p *Project, b Builder) (*Stats, error) {
	start := time.Now()
	defer a.setPage(nil)

	if err := a.Emit(ctx, EventBuilderInited, NewPage(ctx, a, p, b, nil)); err != nil {
		return nil, err
	}

	r := b.Renderer(a.renderers[b.Format()])
	for _, doc := range p.Documents() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := NewPage(ctx, a, p, b, doc)
		a.setPage(page)

		if err := a.Emit(ctx, EventDoctreeResolved, page); err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := r.Render(&buf, doc.Source, doc.AST); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", doc.Name)
		}
		if err := b.WritePage(page, buf.Bytes()); err != nil {
			return nil, err
		}
		a.logger.Debug("wrote page", "doc", doc.Name, "builder", b.Name())
	}
	a.setPage(nil)

	if err := b.Finish(p); err != nil {
		return nil, err
	}
	if err := a.Emit(ctx, EventBuildFinished, NewPage(ctx, a, p, b, nil)); err != nil {
		return nil, err
	}

	return &Stats{
		Documents: len(p.Documents()),
		Warnings:  a.warnings.Count(),
		Duration:  time.Since(start),
		Counts:    a.Counts(),
	}, nil
}
