// Package errors provides standardized error handling for the notification
// delivery pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeConfigMissing     ErrorCode = "CONFIGURATION_MISSING"
	ErrCodeTransientDelivery ErrorCode = "TRANSIENT_DELIVERY_FAILURE"
	ErrCodePermanentDelivery ErrorCode = "PERMANENT_DELIVERY_FAILURE"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable malformed-input error.
// No side effects may have happened when one is returned.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates a non-retryable ownership/authorization error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Caller does not own the requested resource",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError creates a hard setup-defect error. This is the only
// class the delivery engine propagates to its caller: with missing transport
// credentials no send can possibly succeed.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigMissing,
		Message:   "Transport configuration missing or invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientDeliveryError creates a retryable per-device delivery error.
func NewTransientDeliveryError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientDelivery,
		Message:   "Push delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"endpoint": endpoint},
		Timestamp: time.Now().UTC(),
	}
}

// NewPermanentDeliveryError creates a non-retryable gone/unregistered error.
func NewPermanentDeliveryError(endpoint string, statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodePermanentDelivery,
		Message:   "Push endpoint permanently unavailable",
		Details:   fmt.Sprintf("statusCode: %d", statusCode),
		Retryable: false,
		Metadata:  map[string]interface{}{"endpoint": endpoint, "statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError creates a retryable registry/log write error. When the
// write follows a push that already reached a device it is logged for the
// operator but never rolled back or resent.
func NewPersistenceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Database write failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// asStandard extracts a *StandardError from an error chain.
func asStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Code == ErrCodeValidationFailed
}

// IsUnauthorized reports whether err is an ownership failure.
func IsUnauthorized(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Code == ErrCodeUnauthorized
}

// IsNotFound reports whether err is a missing-resource failure.
func IsNotFound(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Code == ErrCodeNotFound
}

// IsConfiguration reports whether err is a setup defect.
func IsConfiguration(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Code == ErrCodeConfigMissing
}

// IsPermanentDelivery reports whether err carries a gone/unregistered signal.
func IsPermanentDelivery(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Code == ErrCodePermanentDelivery
}

// IsRetryable reports whether the error is marked retryable. Unknown error
// types are treated as non-retryable.
func IsRetryable(err error) bool {
	stdErr, ok := asStandard(err)
	return ok && stdErr.Retryable
}
