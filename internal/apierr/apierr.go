// Package apierr defines the structured error returned by the simulated
// services. An *Error carries the AWS error code, the human-readable message
// and the HTTP status the wire layer should answer with. It satisfies
// smithy.APIError so callers can handle simulator errors and SDK errors the
// same way.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

// Error is an AWS-shaped API error.
type Error struct {
	Code       string
	Message    string
	StatusCode int

	// Extra holds service-specific members rendered next to the code and
	// message, such as FileSystemId on EFS FileSystemAlreadyExists.
	Extra map[string]string
}

// Compile-time check: *Error satisfies smithy.APIError.
var _ smithy.APIError = (*Error)(nil)

// New returns an Error with the given code, status and formatted message.
func New(status int, code, format string, args ...any) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: status,
	}
}

// With sets an extra member on e and returns e.
func (e *Error) With(key, value string) *Error {
	if e.Extra == nil {
		e.Extra = make(map[string]string)
	}
	e.Extra[key] = value
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the AWS error code.
func (e *Error) ErrorCode() string { return e.Code }

// ErrorMessage returns the error message without the code prefix.
func (e *Error) ErrorMessage() string { return e.Message }

// ErrorFault reports whether the caller or the service is to blame.
func (e *Error) ErrorFault() smithy.ErrorFault {
	if e.StatusCode >= http.StatusInternalServerError {
		return smithy.FaultServer
	}
	return smithy.FaultClient
}

// As extracts an *Error from err. Errors that are not API errors are
// reported as InternalFailure so the wire layer always has something to
// render.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{
		Code:       "InternalFailure",
		Message:    "The request processing has failed because of an unknown error, exception or failure.",
		StatusCode: http.StatusInternalServerError,
	}
}

// HasCode reports whether err is an API error with the given code.
func HasCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}
