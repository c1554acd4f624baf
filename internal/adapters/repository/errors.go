package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrStaleVersion  = errors.New("stale version")
	ErrNotConfigured = errors.New("storage is not configured")
)
