package ai

import (
	"errors"
	"fmt"
)

// ServiceError wraps a failure from an AI provider with enough context to
// attribute it in logs and decide whether to retry.
type ServiceError struct {
	Provider  string
	Op        string
	Retryable bool
	Metadata  map[string]interface{}
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ai %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err (or anything it wraps) is a retryable
// provider failure.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
