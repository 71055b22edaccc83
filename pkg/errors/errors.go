package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeCapacityExceeded ErrorType = "capacity_exceeded"
	ErrorTypeInvalidState     ErrorType = "invalid_state"
	ErrorTypeNotEligible      ErrorType = "not_eligible"
	ErrorTypeUnavailable      ErrorType = "unavailable"
	ErrorTypeAuthentication   ErrorType = "authentication"
	ErrorTypeInternal         ErrorType = "internal"
)

// Sentinels for errors.Is checks. Matching is by Type only, so any AppError
// of the same kind satisfies errors.Is(err, ErrNotFound).
var (
	ErrValidation       = &AppError{Type: ErrorTypeValidation}
	ErrNotFound         = &AppError{Type: ErrorTypeNotFound}
	ErrCapacityExceeded = &AppError{Type: ErrorTypeCapacityExceeded}
	ErrInvalidState     = &AppError{Type: ErrorTypeInvalidState}
	ErrNotEligible      = &AppError{Type: ErrorTypeNotEligible}
	ErrUnavailable      = &AppError{Type: ErrorTypeUnavailable}
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is reports whether target is an AppError of the same type
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Retryable reports whether the caller may retry the operation with backoff
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeUnavailable
}

// WithDetail returns the error with an extra detail attached
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewCapacityExceededError creates a sold-out error
func NewCapacityExceededError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeCapacityExceeded,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInvalidStateError creates an illegal-transition error
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewNotEligibleError creates an admission eligibility error
func NewNotEligibleError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotEligible,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewUnavailableError creates a transient storage contention error
func NewUnavailableError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Internal:   internal,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// ErrorResponse represents the JSON error response
type ErrorResponse struct {
	Error struct {
		Type      ErrorType              `json:"type"`
		Message   string                 `json:"message"`
		Details   map[string]interface{} `json:"details,omitempty"`
		RequestID string                 `json:"request_id,omitempty"`
		Timestamp string                 `json:"timestamp"`
	} `json:"error"`
}

// Response builds the JSON envelope for the error
func (e *AppError) Response(requestID string) *ErrorResponse {
	resp := &ErrorResponse{}
	resp.Error.Type = e.Type
	resp.Error.Message = e.Message
	resp.Error.Details = e.Details
	resp.Error.RequestID = requestID
	resp.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return resp
}
