package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	// KindTimeout means the per-task deadline elapsed before the vendor answered.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited means the vendor signalled throttling (HTTP 429 or a
	// rate-limit phrase in the error body).
	KindRateLimited ErrorKind = "rate_limited"
	// KindBackend covers every other vendor or transport failure.
	KindBackend ErrorKind = "backend"
)

// CallError is the tagged error returned across the client boundary.
// Callers distinguish "the backend said X" from "the call failed" by the
// error return alone; error text is never smuggled as output.
type CallError struct {
	Backend ID
	Kind    ErrorKind
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == KindTimeout
}

// IsRateLimited reports whether err is vendor-signalled throttling.
func IsRateLimited(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == KindRateLimited
}

// ErrUnknownBackend is returned by the registry for IDs outside the
// configured set.
var ErrUnknownBackend = errors.New("unknown backend")
