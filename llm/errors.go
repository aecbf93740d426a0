package llm

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the model API. It is wrapped in a
// TransientError or FatalError depending on the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from an error chain, or 0 when the
// error did not come from the model API.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// TransientError marks a failure that may succeed on retry, such as a
// rate limit or an upstream 5xx.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError marks a failure that will not succeed on retry, such as an
// auth failure or a malformed request.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether retrying the error is pointless.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
