// Package apierr defines the structured errors returned by the Open Veil API.
//
// Every error carries an HTTP status and a machine-readable code. Anything that
// is not an *Error is reported as internal_error without exposing its text.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openveil/openveil/pkg/content"
)

// Error codes
const (
	CodeMissingTitle      = "missing_title"
	CodeMissingProtocolID = "missing_protocol_id"
	CodeInvalidProtocolID = "invalid_protocol_id"
	CodeInvalidMeta       = "invalid_meta"
	CodeInvalidJSON       = "invalid_json"
	CodeInvalidID         = "invalid_id"
	CodeNoChanges         = "no_changes"
	CodeProtocolHasTrials = "protocol_has_trials"
	CodeForbidden         = "rest_forbidden"
	CodeRateLimited       = "rate_limited"
	CodeDeleteFailed      = "delete_failed"
	CodeInternal          = "internal_error"
	CodeNoRoute           = "rest_no_route"
)

// Error is an API error with a status and code
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Body is the JSON representation of an error
type Body struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Data    BodyData `json:"data"`
}

// BodyData carries the HTTP status inside the error body
type BodyData struct {
	Status int `json:"status"`
}

// Body returns the client-facing error body
func (e *Error) Body() Body {
	return Body{Code: e.Code, Message: e.Message, Data: BodyData{Status: e.Status}}
}

// New creates an error
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error
func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

// NotFound reports a missing resource of the given kind
func NotFound(kind content.Kind) *Error {
	return New(http.StatusNotFound, string(kind)+"_not_found", kind.Label()+" not found.")
}

// Forbidden reports a permission denial. Unauthenticated callers get 401.
func Forbidden(authenticated bool) *Error {
	if authenticated {
		return New(http.StatusForbidden, CodeForbidden, "Sorry, you are not allowed to do that.")
	}
	return New(http.StatusUnauthorized, CodeForbidden, "Sorry, you are not allowed to do that.")
}

// Internal wraps an unexpected failure
func Internal(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "An unexpected error occurred.",
		Err:     err,
	}
}

// Wrap attaches a cause to an error without changing what clients see
func Wrap(e *Error, err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// As converts any error to an *Error, falling back to internal_error
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}
