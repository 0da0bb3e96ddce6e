package worker

import (
	"errors"
	"fmt"
)

// === Retry Classification ===

// RetryableError wraps transient errors that should be retried.
// Only errors wrapped with Transient() will be retried; everything else is
// treated as permanent.
//
// Use for: network timeouts, database connection lost, provider 5xx, open
// circuit breakers, rate limits.
// Don't use for: validation errors, not found errors, provider 4xx.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string { return e.Err.Error() }
func (e RetryableError) Unwrap() error { return e.Err }

// Transient wraps an error to signal it should be retried.
//
// Example:
//
//	if err := sender.Send(ctx, msg); err != nil {
//	    return worker.Transient(err) // Will retry with exponential backoff
//	}
func Transient(err error) error {
	return RetryableError{Err: err}
}

// IsRetryable returns true if the error should be retried.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// === Panic Handling ===

// PanicError indicates a panic occurred while processing a delivery.
// Panics indicate programming errors, not transient issues, so they are
// recorded as failures without retry.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic returns true if the error indicates a panic occurred.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
