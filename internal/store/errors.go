package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrStorageUnavailable marks a failed database call. Callers should
	// retry instead of treating the connection as gone.
	ErrStorageUnavailable = errors.New("token storage unavailable")
)
