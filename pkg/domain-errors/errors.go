// Package domainerrors defines the coded error type shared by services and
// the HTTP transport. Services return coded errors; the transport maps the
// code to a status and the message to the response body, so no layer needs
// to know about the other's vocabulary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and log filtering.
type Code string

const (
	// CodeBadRequest marks malformed or missing client input.
	CodeBadRequest Code = "bad_request"
	// CodeForbidden marks requests from untrusted origins or with a wrong
	// access code.
	CodeForbidden Code = "forbidden"
	// CodeMethodNotAllowed marks a request with the wrong HTTP verb.
	CodeMethodNotAllowed Code = "method_not_allowed"
	// CodeInternal marks configuration problems: missing credentials,
	// inconsistent registries. Details stay in the logs.
	CodeInternal Code = "internal"
	// CodeUpstream marks a failed call to a collaborator whose success is
	// required (token or assertion endpoint).
	CodeUpstream Code = "upstream"
)

// Error carries a code, a client-safe message, and an optional cause.
type Error struct {
	Code    Code
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

// New builds a coded error with a fixed message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// MessageOf returns the client-safe message of a coded error, or a generic
// fallback for uncoded errors so internals never leak into responses.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return "internal server error"
}

// ToHTTPStatus maps a code to the HTTP status the transport should write.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeInternal, CodeUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf resolves the HTTP status for any error, defaulting to 500 for
// uncoded errors.
func StatusOf(err error) int {
	var coded *Error
	if errors.As(err, &coded) {
		return ToHTTPStatus(coded.Code)
	}
	return http.StatusInternalServerError
}
