package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the collection and record engine
const (
	KindNotFound       = "not_found"
	KindConflict       = "conflict"
	KindBadRequest     = "bad_request"
	KindValidation     = "validation"
	KindStorageFailure = "storage_failure"
)

// CustomError is the error type returned by every engine operation.
// Code is the HTTP status the transport should use, Type is the stable kind.
type CustomError struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Type    string            `json:"type"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s [type: %s]: %v", e.Code, e.Message, e.Type, e.Err)
	}
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing collection or record
func NotFound(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: http.StatusNotFound, Message: fmt.Sprintf(format, args...), Type: KindNotFound}
}

// Conflict reports a duplicate name or unique constraint violation
func Conflict(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: http.StatusConflict, Message: fmt.Sprintf(format, args...), Type: KindConflict}
}

// BadRequest reports a structurally invalid request
func BadRequest(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...), Type: KindBadRequest}
}

// Validation reports field level payload errors
func Validation(fields map[string]string) *CustomError {
	return &CustomError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Type:    KindValidation,
		Fields:  fields,
	}
}

// StorageFailure wraps an unexpected DDL or row I/O failure
func StorageFailure(err error, format string, args ...interface{}) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf(format, args...),
		Type:    KindStorageFailure,
		Err:     err,
	}
}

// AsCustomError finds a CustomError in the chain of err
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind string) bool {
	ce, ok := AsCustomError(err)
	return ok && ce.Type == kind
}
