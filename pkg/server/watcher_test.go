package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docdiag/pkg/errors"
)

func TestFilters(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"docs/index.md", true},
		{"docs/.index.md.swp", false},
		{"docs/_static", false},
		{"docs/index.md~", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NotHidden(tt.path), tt.path)
	}

	under := NotUnder("/project/out")
	assert.False(t, under("/project/out"))
	assert.False(t, under("/project/out/index.html"))
	assert.True(t, under("/project/outline.md"))
	assert.True(t, under("/project/docs/index.md"))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "created", OpCreated.String())
	assert.Equal(t, "modified", OpModified.String())
	assert.Equal(t, "removed", OpRemoved.String())
	assert.Equal(t, "renamed", OpRenamed.String())
	assert.Equal(t, "unknown", Op(42).String())
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), time.Millisecond, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestWatcherBatches(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(out, 0755))

	w, err := NewWatcher(root, 100*time.Millisecond, nil, NotHidden, NotUnder(out))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []Change, 10)
	go func() {
		_ = w.Run(ctx, func(c []Change) { batches <- c })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("aa"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.html"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0644))

	select {
	case batch := <-batches:
		paths := make([]string, len(batch))
		for i, c := range batch {
			paths[i] = filepath.Base(c.Path)
		}
		assert.Equal(t, []string{"a.md", "b.md"}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	// New directories are watched too.
	sub := filepath.Join(root, "guide")
	require.NoError(t, os.Mkdir(sub, 0755))
	<-batches
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.md"), []byte("c"), 0644))

	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		assert.Equal(t, filepath.Join(sub, "c.md"), batch[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("change in new directory not delivered")
	}
}
