package cache

import "errors"

var (
	// ErrCacheMiss is returned for absent, expired or already-taken keys
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable indicates Redis could not be reached
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue indicates the stored value cannot be encoded or decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)
