package docs

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Warnings records build warnings. Warnings about a misconfiguration that
// would otherwise repeat for every diagram are reported once per kind and
// subject.
type Warnings struct {
	logger *log.Logger

	mu    sync.Mutex
	seen  map[string]bool
	count int
}

// NewWarnings creates a registry that logs through logger.
func NewWarnings(logger *log.Logger) *Warnings {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Warnings{logger: logger, seen: map[string]bool{}}
}

// Warn logs a warning.
func (w *Warnings) Warn(msg string, keyvals ...any) {
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
	w.logger.Warn(msg, keyvals...)
}

// Once logs a warning unless one was already logged for kind and subject.
// It reports whether the warning was logged.
func (w *Warnings) Once(kind, subject, msg string, keyvals ...any) bool {
	key := kind + "\x00" + subject
	w.mu.Lock()
	if w.seen[key] {
		w.mu.Unlock()
		return false
	}
	w.seen[key] = true
	w.mu.Unlock()

	w.Warn(msg, keyvals...)
	return true
}

// Count returns the number of warnings logged.
func (w *Warnings) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reset forgets all warnings.
func (w *Warnings) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = map[string]bool{}
	w.count = 0
}
