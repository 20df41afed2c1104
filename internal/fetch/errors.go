package fetch

import (
	"errors"
	"fmt"

	"github.com/chainboard/jobs-crawler/internal/breaker"
)

// Kind classifies a fetch failure for retry decisions and error attribution.
type Kind string

// Failure kinds. Network, rate-limit and server errors are retryable;
// client errors and open circuits are not.
const (
	KindNetwork     Kind = "network"
	KindHTTPClient  Kind = "http_client"
	KindRateLimit   Kind = "rate_limit"
	KindHTTPServer  Kind = "http_server"
	KindParse       Kind = "parse"
	KindCircuitOpen Kind = "circuit_open"
)

// Error is the typed failure returned by the fetch boundary. It always wraps
// the underlying cause so errors.Is/As keep working.
type Error struct {
	Kind       Kind
	Source     string
	Domain     string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (%s): status %d: %v", e.Domain, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Domain, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindHTTPServer:
		return true
	default:
		return false
	}
}

// IsCircuitOpen reports whether err is a short-circuited fetch.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, breaker.ErrCircuitOpen)
}

// KindOf extracts the failure kind from err, or empty when err is not a
// fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
