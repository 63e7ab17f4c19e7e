package llm

import "errors"

var (
	// ErrRateLimited indicates the provider signaled too many requests.
	// This is the only retryable classification failure.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a non-retryable HTTP or network failure.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrNotImplemented indicates no provider is configured.
	ErrNotImplemented = errors.New("llm provider not configured")
)
