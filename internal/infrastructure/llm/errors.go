package llm

import "errors"

// TransientError marks a failure that may succeed on retry: network
// errors, timeouts, rate limiting, server-side 5xx.
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

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
