package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an analyzer call failure. The orchestrator's fallback
// cascade branches on these, never on raw error strings.
type Kind string

const (
	// KindNetwork covers transport and DNS failures.
	KindNetwork Kind = "network"
	// KindTimeout covers deadline and cancellation failures.
	KindTimeout Kind = "timeout"
	// KindOriginBlocked covers origin/authorization rejections (HTTP 403).
	KindOriginBlocked Kind = "origin-blocked"
	// KindClient covers remaining 4xx responses, including 404.
	KindClient Kind = "http-4xx"
	// KindServer covers 5xx analyzer failures.
	KindServer Kind = "http-5xx"
	// KindMalformed covers non-JSON bodies, e.g. an SPA fallback page
	// intercepting an API route. Treated like a network failure: the
	// response cannot be trusted.
	KindMalformed Kind = "malformed-response"
	// KindEmpty covers responses that parse but contain no usable
	// recommendation fields.
	KindEmpty Kind = "empty-output"
)

// Error is a classified analyzer call failure.
type Error struct {
	Kind   Kind
	Status int
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analyzer call %s: %s (status %d): %v", e.URL, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("analyzer call %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure should trigger the next fallback
// strategy. Only plain client errors are terminal: the request itself is
// wrong and no alternative path will fix it.
func (e *Error) Retryable() bool {
	return e.Kind != KindClient
}

// KindOf extracts the classification from an error chain; unclassified
// errors report KindNetwork.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether err should trigger the fallback cascade.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return true
}

// classifyTransport maps an http.Client error to a Kind.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// classifyStatus maps a non-2xx HTTP status to a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 403:
		return KindOriginBlocked
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindServer
	}
}
