package model

import "errors"

// Sentinel errors shared across the service and handler layers. Handlers
// map them to HTTP status codes with errors.Is; background loops log them
// and continue.
var (
	// ErrNotFound indicates a query matched no rows.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed request parameters, detected
	// before any store access.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates a uniqueness conflict. The price repository
	// swallows it for price rows; it surfaces only for user registration.
	ErrDuplicate = errors.New("already exists")

	// ErrUpstreamNetwork is a transport-level failure talking to the
	// external price API. Retryable.
	ErrUpstreamNetwork = errors.New("upstream network error")

	// ErrUpstreamRemote is a well-formed error response (non-2xx) from
	// the external price API. Not retryable.
	ErrUpstreamRemote = errors.New("upstream remote error")

	// ErrUpstreamData means the upstream response parsed but the expected
	// price field was absent. Not retryable.
	ErrUpstreamData = errors.New("upstream data error")
)
