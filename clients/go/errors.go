package opecstatego

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork represents failures to reach the service
	ErrorTypeNetwork
	// ErrorTypeAPI represents error responses from the service
	ErrorTypeAPI
	// ErrorTypeValidation represents requests the service rejected as malformed
	ErrorTypeValidation
	// ErrorTypeNotFound represents a missing state or user
	ErrorTypeNotFound
	// ErrorTypeConflict represents a duplicate user name
	ErrorTypeConflict
)

// Error represents a structured error with type information
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

func NewNetworkError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: message, Cause: cause}
}

func isType(err error, errorType ErrorType) bool {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.IsType(errorType)
	}
	return false
}

func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

func IsAPIError(err error) bool {
	return isType(err, ErrorTypeAPI)
}

func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// WrapHTTPError turns an error response into an *Error. The service sends
// the reason as the plain-text body.
func WrapHTTPError(resp *http.Response, message string) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("%s: %s", message, resp.Status)
	if reason := strings.TrimSpace(string(body)); reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, reason)
	}

	errorType := ErrorTypeAPI
	switch resp.StatusCode {
	case http.StatusBadRequest:
		errorType = ErrorTypeValidation
	case http.StatusNotFound:
		errorType = ErrorTypeNotFound
	case http.StatusConflict:
		errorType = ErrorTypeConflict
	}
	return &Error{Type: errorType, Message: msg, StatusCode: resp.StatusCode}
}
