package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, device_unavailable, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code so wrapped copies still satisfy errors.Is.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Fatal reports whether the error must abort the whole run.
func (e *ExecutionError) Fatal() bool {
	return e.Category == ErrCategoryDevice
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// No device connected. The only unrecoverable error.
	ErrDeviceUnavailable = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "device_unavailable",
		Message:  "no device connected",
	}

	// Degrades to the vision fallback.
	ErrUIDumpUnavailable = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "ui_dump_unavailable",
		Message:  "UI hierarchy dump unavailable",
	}
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryLookup,
		Code:     "element_not_found",
		Message:  "element not found",
	}

	// Degrades to heuristic text extraction or a default wait.
	ErrModelResponseUnparseable = &ExecutionError{
		Category: ErrCategoryModel,
		Code:     "model_response_unparseable",
		Message:  "model response could not be parsed",
	}
	ErrModelUnavailable = &ExecutionError{
		Category: ErrCategoryModel,
		Code:     "model_unavailable",
		Message:  "vision model call failed",
	}

	// Aborts the current objective, not the suite.
	ErrActionExecution = &ExecutionError{
		Category: ErrCategoryExecution,
		Code:     "action_execution",
		Message:  "action execution failed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)
