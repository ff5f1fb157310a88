package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents internal error codes for monitoring operations
type ErrorCode string

const (
	ErrCodeOK              ErrorCode = "OK"
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"
	ErrCodeAlertNotFound   ErrorCode = "ALERT_NOT_FOUND"
	ErrCodeProbeFailed     ErrorCode = "PROBE_FAILED"
	ErrCodeUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// MonitorError represents a structured error with code and context
type MonitorError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *MonitorError) Unwrap() error {
	return e.Cause
}

// Is matches another MonitorError by code, so sentinel comparisons work
// through errors.Is.
func (e *MonitorError) Is(target error) bool {
	t, ok := target.(*MonitorError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ToHTTPStatus maps the error code to an HTTP status
func (e *MonitorError) ToHTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeServiceNotFound, ErrCodeAlertNotFound:
		return http.StatusNotFound
	case ErrCodeProbeFailed:
		return http.StatusBadGateway
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail attaches a key/value pair to the error details
func (e *MonitorError) WithDetail(key string, value interface{}) *MonitorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrServiceNotFound = &MonitorError{Code: ErrCodeServiceNotFound, Message: "service not found"}
	ErrAlertNotFound   = &MonitorError{Code: ErrCodeAlertNotFound, Message: "alert not found"}
	ErrProbeFailed     = &MonitorError{Code: ErrCodeProbeFailed, Message: "probe failed"}
	ErrUnavailable     = &MonitorError{Code: ErrCodeUnavailable, Message: "unavailable"}
)

// NewInvalidArgumentError creates an error for rejected input
func NewInvalidArgumentError(message string) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeInvalidArgument,
		Message: message,
	}
}

// NewServiceNotFoundError creates an error for an unregistered service name
func NewServiceNotFoundError(name string) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeServiceNotFound,
		Message: fmt.Sprintf("service %q is not registered", name),
		Details: map[string]interface{}{"service": name},
	}
}

// NewAlertNotFoundError creates an error for an unknown or already resolved alert
func NewAlertNotFoundError(id string) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeAlertNotFound,
		Message: fmt.Sprintf("no active alert with id %q", id),
		Details: map[string]interface{}{"alert_id": id},
	}
}

// NewProbeError wraps a probe failure for a service
func NewProbeError(name string, cause error) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeProbeFailed,
		Message: fmt.Sprintf("probe for service %q failed", name),
		Details: map[string]interface{}{"service": name},
		Cause:   cause,
	}
}

// NewUnavailableError creates an error for work that could not be scheduled
func NewUnavailableError(message string, cause error) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeUnavailable,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *MonitorError {
	return &MonitorError{
		Code:    ErrCodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error. A nil error is ErrCodeOK.
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Code
	}
	return ErrCodeInternal
}

// HTTPStatus returns the HTTP status for any error
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var me *MonitorError
	if errors.As(err, &me) {
		return me.ToHTTPStatus()
	}
	return http.StatusInternalServerError
}
