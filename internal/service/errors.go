package service

import "fmt"

// ServiceError wraps an unexpected failure of a service operation with the
// operation name, so callers can tell which use case failed with errors.As
// while still matching the cause with errors.Is.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "record_review", "award_badge")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewError returns a ServiceError for operation.
func NewError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
