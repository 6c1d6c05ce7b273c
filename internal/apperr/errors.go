// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalid           = errors.New("invalid input")
	ErrInvalidTripWindow = errors.New("arrival time must be after departure time")
	ErrSeatOutOfRange    = errors.New("seat number out of range")
	ErrLuggageOverweight = errors.New("luggage weight exceeds train capacity")
	ErrSeatAlreadyTaken  = errors.New("seat already taken")
	ErrSameStation       = errors.New("source and destination must differ")
	ErrUnauthenticated   = errors.New("authentication credentials were not provided")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
)

// FieldError attaches a request field path to one of the sentinels above.
type FieldError struct {
	Field  string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail != "" {
		return e.Field + ": " + e.Detail
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

func Field(field string, err error, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// Errors collects several field errors from one validation pass.
type Errors []*FieldError

func (es Errors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (es Errors) Unwrap() []error {
	out := make([]error, 0, len(es))
	for _, e := range es {
		out = append(out, e)
	}
	return out
}

// OrNil returns nil for an empty collection so callers can `return errs.OrNil()`.
func (es Errors) OrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// Prefix rewrites every field path as prefix.field, used for nested payloads.
func Prefix(prefix string, err error) error {
	var fe *FieldError
	var es Errors
	switch {
	case errors.As(err, &es):
		out := make(Errors, 0, len(es))
		for _, e := range es {
			out = append(out, &FieldError{Field: prefix + "." + e.Field, Err: e.Err, Detail: e.Detail})
		}
		return out
	case errors.As(err, &fe):
		return &FieldError{Field: prefix + "." + fe.Field, Err: fe.Err, Detail: fe.Detail}
	default:
		return err
	}
}

// Fields flattens err into field -> messages for response payloads.
func Fields(err error) map[string][]string {
	var es Errors
	if errors.As(err, &es) {
		out := make(map[string][]string, len(es))
		for _, e := range es {
			out[e.Field] = append(out[e.Field], fieldMessage(e))
		}
		return out
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return map[string][]string{fe.Field: {fieldMessage(fe)}}
	}
	return nil
}

func fieldMessage(e *FieldError) string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Err.Error()
}

// StatusCode maps an error to the HTTP status surfaced to the caller.
// A NotFound attached to a body field is a bad reference, not a missing resource.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrSeatAlreadyTaken), errors.Is(err, ErrConflict):
		return http.StatusConflict
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalid),
		errors.Is(err, ErrInvalidTripWindow),
		errors.Is(err, ErrSeatOutOfRange),
		errors.Is(err, ErrLuggageOverweight),
		errors.Is(err, ErrSameStation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err is a rejected request rather than a fault.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}
