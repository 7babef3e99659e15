package types

import (
	"errors"
	"fmt"
)

// AppError is the standard application error type used throughout the
// controller. Component failures are expressed as AppError so the scheduler
// can classify them into a FaultCode without string matching, while the
// wrapped cause stays available for logging via errors.Is/errors.As.
type AppError struct {
	Code    FaultCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code FaultCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the FaultCode from an error chain. It returns FaultNone
// for nil errors and for errors that do not wrap an AppError.
func CodeOf(err error) FaultCode {
	if err == nil {
		return FaultNone
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return FaultNone
}
