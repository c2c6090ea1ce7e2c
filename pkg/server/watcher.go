package server

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/docdiag/pkg/errors"
)

// Op is the kind of a file change.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
	OpRenamed
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	case OpRenamed:
		return "renamed"
	}
	return "unknown"
}

// Change is a changed file.
type Change struct {
	Op   Op
	Path string
}

// Filter reports whether changes to path are of interest.
type Filter func(path string) bool

// NotHidden drops files and directories whose name starts with "." or
// "_", and editor backups ending in "~".
func NotHidden(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasPrefix(base, "_") && !strings.HasSuffix(base, "~")
}

// NotUnder drops paths inside dir.
func NotUnder(dir string) Filter {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			return true
		}
		return p != abs && !strings.HasPrefix(p, abs+string(filepath.Separator))
	}
}

// Watcher reports changes under a directory tree in batches. Changes
// closer together than the debounce delay end up in the same batch, with
// one entry per path.
type Watcher struct {
	fs      *fsnotify.Watcher
	root    string
	delay   time.Duration
	filters []Filter
	logger  *log.Logger
}

// NewWatcher watches root and all directories below it that pass the
// filters.
func NewWatcher(root string, delay time.Duration, logger *log.Logger, filters ...Filter) (*Watcher, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create watcher")
	}
	w := &Watcher{fs: fw, root: filepath.Clean(root), delay: delay, filters: filters, logger: logger}
	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) accept(path string) bool {
	for _, f := range w.filters {
		if !f(path) {
			return false
		}
	}
	return true
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && !w.accept(p) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrCodeFileNotFound, "watch %s: directory not found", root)
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "watch %s", root)
	}
	return nil
}

// Run delivers batches of changes to handle until ctx is done. handle runs
// on the watcher goroutine, so batches never overlap.
func (w *Watcher) Run(ctx context.Context, handle func([]Change)) error {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = map[string]Change{}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			c, ok := w.change(ev)
			if !ok {
				continue
			}
			pending[c.Path] = c
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-fire:
			fire = nil
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			pending = map[string]Change{}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			handle(batch)
		}
	}
}

// change converts an fsnotify event. New directories are watched as well.
func (w *Watcher) change(ev fsnotify.Event) (Change, bool) {
	if !w.accept(ev.Name) {
		return Change{}, false
	}
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreated
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", ev.Name, "err", err)
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModified
	case ev.Has(fsnotify.Remove):
		op = OpRemoved
	case ev.Has(fsnotify.Rename):
		op = OpRenamed
	default:
		// chmod only
		return Change{}, false
	}
	return Change{Op: op, Path: ev.Name}, true
}
