package gateway

import "errors"

var (
	// ErrAuth is returned when the API key is rejected (HTTP 401).
	// Callers should treat this as fatal rather than retrying.
	ErrAuth = errors.New("gateway: invalid API key")

	// ErrTransient is returned for recoverable failures: network errors,
	// timeouts, and non-401 HTTP error responses. Callers retry on the
	// next poll cycle.
	ErrTransient = errors.New("gateway: request failed")
)
