// Package apperr defines the error taxonomy shared by the assistant's
// components and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindParse
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindParse:
		return "parse"
	case KindExternalService:
		return "external_service"
	default:
		return "unknown"
	}
}

// Error is an application error carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so package
// sentinels work with errors.Is even when wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return newError(KindValidation, message, nil) }

func NotFound(resource string) *Error {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), nil)
}

func Conflict(message string) *Error { return newError(KindConflict, message, nil) }

func Parse(message string, err error) *Error { return newError(KindParse, message, err) }

func External(service string, err error) *Error {
	return newError(KindExternalService, fmt.Sprintf("%s unavailable", service), err)
}

// Wrap attaches a cause to an existing sentinel, keeping its kind and message.
func Wrap(sentinel *Error, err error) *Error {
	return newError(sentinel.Kind, sentinel.Message, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindParse:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
