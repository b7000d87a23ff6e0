// Package apperror carries coded application errors through the engine,
// the service layer and the JSON API. Each code maps to one HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Simulation
	CodeInvalidParameters  ErrorCode = "INVALID_PARAMETERS"
	CodeEmptyResultSet     ErrorCode = "EMPTY_RESULT_SET"
	CodeTrialLimitExceeded ErrorCode = "TRIAL_LIMIT_EXCEEDED"

	// Transport
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	CodeTimeout     ErrorCode = "TIMEOUT"
	CodeCancelled   ErrorCode = "CANCELLED"

	// General
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNilInput        ErrorCode = "NIL_INPUT"
)

// statusClientClosed nginx: клиент закрыл соединение
const statusClientClosed = 499

// httpStatuses коды, которых нет в таблице, отдаются как 500
var httpStatuses = map[ErrorCode]int{
	CodeInvalidParameters:  http.StatusBadRequest,
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNilInput:           http.StatusBadRequest,
	CodeEmptyResultSet:     http.StatusUnprocessableEntity,
	CodeTrialLimitExceeded: http.StatusRequestEntityTooLarge,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeNotFound:           http.StatusNotFound,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeCancelled:          statusClientClosed,
}

// Error is a coded application error. Field names the offending input,
// Details carries structured context for the response body.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to the HTTP status returned by the JSON API.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatuses[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates an application error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any)}
}

// NewWithField is New plus the name of the offending input field.
func NewWithField(code ErrorCode, message, field string) *Error {
	return New(code, message).WithField(field)
}

// Wrap creates an application error around cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithDetails adds a key-value pair to the details map.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithField sets the offending field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// Is reports whether err carries an application error with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// Code extracts the ErrorCode from err, CodeInternal for foreign errors.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// From returns the *Error in the chain of err, or wraps err as CodeInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, err.Error())
}

var (
	ErrEmptyResultSet = New(CodeEmptyResultSet, "result set is empty")
	ErrNilResultSet   = New(CodeNilInput, "result set is nil")
)

// ValidationErrors collects every violation of one input before failing,
// so the caller sees all bad fields at once.
type ValidationErrors struct {
	Errors []*Error
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// AddErrorWithField records a violation of field.
func (v *ValidationErrors) AddErrorWithField(code ErrorCode, message, field string) {
	v.Errors = append(v.Errors, NewWithField(code, message, field))
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// ErrorMessages returns the rendered message of every violation.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// Fields returns the offending fields in the order they were added.
func (v *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for _, err := range v.Errors {
		if err.Field != "" {
			fields = append(fields, err.Field)
		}
	}
	return fields
}

// AsError folds the collected errors into a single *Error with the given code.
// The first violation becomes the message and field; every message is kept
// under the "violations" detail. Returns nil when there are no errors.
func (v *ValidationErrors) AsError(code ErrorCode) *Error {
	if !v.HasErrors() {
		return nil
	}
	first := v.Errors[0]
	return NewWithField(code, first.Message, first.Field).
		WithDetails("violations", v.ErrorMessages()).
		WithDetails("fields", v.Fields())
}
