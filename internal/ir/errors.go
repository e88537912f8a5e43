package ir

import (
	"errors"
	"fmt"
)

// Error is the single error type raised by the timing core.
//
// Every code is fatal at the core level: nothing retries, because a
// timing-critical trial cannot be replayed mid-run. Non-fatal conditions
// (ignored keys, anticipations) are NaN scores in the logs, never errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates an invalid construction-time invariant.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeTimeout indicates a bounded wait for an external pulse expired.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeDriftExceeded indicates a pulse period estimate left tolerance.
	ErrCodeDriftExceeded ErrorCode = "DRIFT_EXCEEDED"

	// ErrCodeUserAbort indicates the operator pressed the abort key.
	ErrCodeUserAbort ErrorCode = "USER_ABORT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConfigurationError returns true if err is a construction-time error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsTimeoutError returns true if err is a pulse timeout.
func IsTimeoutError(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsDriftError returns true if err is a pulse drift error.
func IsDriftError(err error) bool {
	return hasCode(err, ErrCodeDriftExceeded)
}

// IsUserAbort returns true if err was raised by the abort key.
func IsUserAbort(err error) bool {
	return hasCode(err, ErrCodeUserAbort)
}

// NewConfigurationError creates an Error for an invalid construction.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewTimeoutError creates an Error for a pulse wait that exceeded timeout
// seconds.
func NewTimeoutError(timeout float64) *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("exceeded %.0fs timeout without receiving pulse", timeout),
		Details: map[string]string{
			"timeout": fmt.Sprintf("%g", timeout),
		},
	}
}

// NewDriftError creates an Error for a pulse period estimate outside
// tolerance of the running estimate.
func NewDriftError(expected, estimated, tolerance float64) *Error {
	return &Error{
		Code:    ErrCodeDriftExceeded,
		Message: fmt.Sprintf("pulse period beyond tolerance: expected=%.4f, estimated=%.4f", expected, estimated),
		Details: map[string]string{
			"expected":  fmt.Sprintf("%g", expected),
			"estimated": fmt.Sprintf("%g", estimated),
			"tolerance": fmt.Sprintf("%g", tolerance),
		},
	}
}

// NewUserAbortError creates an Error for the given abort key.
func NewUserAbortError(key string) *Error {
	return &Error{
		Code:    ErrCodeUserAbort,
		Message: fmt.Sprintf("user pressed %s", key),
		Details: map[string]string{"key": key},
	}
}
