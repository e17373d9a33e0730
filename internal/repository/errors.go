package repository

import "errors"

// Shared repository errors.
var (
	// ErrNotFound indicates the requested key is absent or has expired.
	ErrNotFound = errors.New("repository: record not found")
)
