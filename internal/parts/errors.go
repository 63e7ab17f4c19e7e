package parts

import "errors"

// ErrNotFound indicates no input row exists for an id.
var ErrNotFound = errors.New("not found")
