package dockerproxy

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("dockerproxy: container not found")
	ErrForbidden           = errors.New("dockerproxy: operation forbidden by proxy policy")
	ErrUpstreamUnavailable = errors.New("dockerproxy: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("dockerproxy: daemon error")
	ErrBadResponse         = errors.New("dockerproxy: invalid response format or malformed data")
	ErrTimeout             = errors.New("dockerproxy: request timed out")
	ErrRestartRejected     = errors.New("dockerproxy: restart rejected")
)

// ProxyError is a rich error type that wraps the sentinel errors with context.
type ProxyError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *ProxyError) Error() string {
	msg := fmt.Sprintf("dockerproxy: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProxyError) Unwrap() error {
	return e.Sentinel
}

// sentinelForStatus maps an unexpected HTTP status to a sentinel error.
func sentinelForStatus(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 403:
		return ErrForbidden
	case status >= 500:
		return ErrUpstreamError
	default:
		return ErrBadResponse
	}
}
