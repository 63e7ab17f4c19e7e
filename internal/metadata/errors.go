package metadata

import "errors"

var (
	// ErrNotFound indicates no cached entry exists for a key.
	ErrNotFound = errors.New("not found")

	// ErrBlankKey indicates a write was attempted with an empty key.
	ErrBlankKey = errors.New("blank key")
)
