package cache

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Open returns the cache backend named by kind. For "file" the target is a
// directory, for "redis" a redis:// URL. An empty kind selects the file
// backend.
func Open(kind, target string) (Cache, error) {
	switch strings.ToLower(kind) {
	case "", BackendFile:
		if target == "" {
			return NewNullCache(), nil
		}
		return NewFileCache(target)
	case BackendRedis:
		return NewRedisCache(target)
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackend, kind)
	}
}
