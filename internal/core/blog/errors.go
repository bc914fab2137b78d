package blog

import "errors"

var (
	// ErrNotFound is returned when the upstream blog has no such resource.
	// It is permanent for the request and maps to Gemini status 51.
	ErrNotFound = errors.New("not found upstream")

	// ErrTransient is returned for network failures, timeouts, upstream
	// server errors and unparsable feeds. The request may succeed on retry;
	// it maps to Gemini status 40.
	ErrTransient = errors.New("upstream temporarily unavailable")

	// ErrInvalidSlug is returned when a slug is empty or contains a path separator.
	ErrInvalidSlug = errors.New("invalid slug")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
