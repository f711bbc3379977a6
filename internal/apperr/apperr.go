// Package apperr defines the error kinds handlers return and the HTTP
// status each one maps to.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for Validation and Conflict errors.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a 422 error from field messages. The top-level message
// is the first field message, as clients expect.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: firstMessage(fields), Fields: fields}
}

// Field is Validation for a single field.
func Field(field, msg string) *Error {
	return Validation(map[string][]string{field: {msg}})
}

func Conflict(field, msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Fields: map[string][]string{field: {msg}}}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindAuthentication, Message: "Unauthenticated."}
}

func Forbidden() *Error {
	return &Error{Kind: KindAuthorization, Message: "This action is unauthorized."}
}

func NotFoundf(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found."}
}

func Wrap(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Server Error", Err: err}
}

// KindOf reports the kind of err; errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Status(k Kind) int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusUnprocessableEntity
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func firstMessage(fields map[string][]string) string {
	// Map order is random; pick the lexically first field for a stable message.
	best := ""
	for k, msgs := range fields {
		if len(msgs) > 0 && (best == "" || k < best) {
			best = k
		}
	}
	if best == "" {
		return "The given data was invalid."
	}
	return fields[best][0]
}
