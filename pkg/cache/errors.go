package cache

import "errors"

// ErrInvalidBackend is returned by Open for an unknown backend name.
var ErrInvalidBackend = errors.New("invalid cache backend")
