package reconcile

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks. The concrete types below carry the detail
// and are meant for errors.As.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("reference code conflict")
	ErrNetwork    = errors.New("network failure")
	ErrServer     = errors.New("server error")
	ErrTimeout    = errors.New("payment confirmation timed out")

	ErrSuperseded = errors.New("payment session superseded")
	ErrDisposed   = errors.New("engine disposed")
)

// ValidationError means the input was rejected before any network call,
// or the server answered 400/422.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid payment request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid payment request: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is returned when a caller-supplied reference code collides
// with an existing open intent.
type ConflictError struct {
	ReferenceCode string
	Message       string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("reference code %q already in use: %s", e.ReferenceCode, e.Message)
	}
	return fmt.Sprintf("reference code %q already in use", e.ReferenceCode)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NetworkError is a transport failure, no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ServerError is a non-2xx answer that is neither a validation error nor a
// conflict, or a 2xx answer with an unusable body.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("server error: %s", e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// TimeoutError reports that the polling window elapsed before a terminal
// status was observed. The true state of the payment is unknown.
type TimeoutError struct {
	IntentID string
	Window   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no confirmation for intent %s within %s", e.IntentID, e.Window)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ErrorForStatus maps a non-2xx HTTP status of the transaction service onto
// the error taxonomy.
func ErrorForStatus(code int, message, referenceCode string) error {
	switch {
	case code == 400 || code == 422:
		return &ValidationError{Reason: message}
	case code == 409:
		return &ConflictError{ReferenceCode: referenceCode, Message: message}
	default:
		return &ServerError{StatusCode: code, Message: message}
	}
}
