package cache

// ScopedKeyer wraps a Keyer with a prefix for per-project isolation.
// This is useful when several documentation projects share one Redis
// instance and must not see each other's artifact index.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "project:handbook:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DiagramKey generates a prefixed key for laid-out diagrams.
func (k *ScopedKeyer) DiagramKey(sourceHash string, opts DiagramKeyOpts) string {
	return k.prefix + k.inner.DiagramKey(sourceHash, opts)
}

// ArtifactKey generates a prefixed key for artifact index entries.
func (k *ScopedKeyer) ArtifactKey(outPath string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(outPath, opts)
}
