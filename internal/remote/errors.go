package remote

import "errors"

var (
	// ErrSessionExpired indicates the session token was rejected. The client
	// never re-logins on its own; the caller decides whether to Login again.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotLoggedIn indicates a request was attempted before Login.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNotFound indicates the remote has no record for the key.
	ErrNotFound = errors.New("record not found")
)
