package job

import "errors"

// ErrNotFound indicates no job exists for an id.
var ErrNotFound = errors.New("not found")
