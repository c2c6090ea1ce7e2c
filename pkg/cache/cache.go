// Package cache provides the key-value backends used by docdiag to remember
// rendered diagram artifacts and laid-out diagrams between builds.
//
// Three backends are available:
//   - [FileCache]: JSON entries under a local directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for teams building on CI runners
//   - [NullCache]: never stores anything (caching disabled)
//
// Keys are produced by a [Keyer] so that callers never build key strings by
// hand. [ScopedKeyer] namespaces keys per project when several projects
// share one backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with optional expiry.
//
// Get reports a miss with (nil, false, nil); errors are reserved for
// backend failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer generates cache keys for the values docdiag stores.
type Keyer interface {
	// DiagramKey keys a laid-out diagram by source digest and engine settings.
	DiagramKey(sourceHash string, opts DiagramKeyOpts) string

	// ArtifactKey keys the index entry of a rendered image file.
	ArtifactKey(outPath string, opts ArtifactKeyOpts) string
}

// DiagramKeyOpts holds the engine settings that change a diagram's layout.
type DiagramKeyOpts struct {
	Antialias  bool   `json:"antialias,omitempty"`
	FontDigest string `json:"font_digest,omitempty"`
}

// ArtifactKeyOpts holds the artifact attributes that belong in its key.
type ArtifactKeyOpts struct {
	Format    string `json:"format"`
	Thumbnail bool   `json:"thumbnail,omitempty"`
}

// DefaultKeyer produces keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key generator.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// DiagramKey implements Keyer.
func (DefaultKeyer) DiagramKey(sourceHash string, opts DiagramKeyOpts) string {
	return hashKey("diagram", sourceHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(outPath string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", outPath, opts)
}
