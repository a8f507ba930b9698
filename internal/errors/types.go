package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransientError represents a collaborator failure that a caller could retry.
// The core performs no retries itself; the classification is surfaced so the
// HTTP layer can pick an appropriate status and the session error record can
// say whether a re-run might succeed.
type TransientError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents a collaborator failure that retrying cannot fix
// (bad request, auth failure, unsupported model).
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as transient with an optional HTTP status.
func NewTransient(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewPermanent wraps err as permanent with an optional HTTP status.
func NewPermanent(err error, statusCode int) *PermanentError {
	return &PermanentError{Err: err, StatusCode: statusCode}
}

// FromHTTPStatus classifies an upstream HTTP response status.
func FromHTTPStatus(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	if isTransientHTTPStatus(statusCode) {
		return NewTransient(err, statusCode)
	}
	return NewPermanent(err, statusCode)
}

// IsTransient checks whether an error could succeed if the call were re-run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
