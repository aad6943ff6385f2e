package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the edges. Values are the wire codes.
type Kind string

// Error kinds.
const (
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindCatalogMissing   Kind = "catalog_missing"
	KindCatalogInvalid   Kind = "catalog_invalid"
	KindDatasetMissing   Kind = "dataset_missing"
	KindInvalidRequest   Kind = "invalid_request"
	KindInvalidPayload   Kind = "invalid_payload"
	KindActivationFailed Kind = "activation_failed"
	KindExecutionFailed  Kind = "execution_failed"
	KindReadOnly         Kind = "read_only"
	KindInternal         Kind = "internal_error"
)

// Sentinel errors. Wrap them with fmt.Errorf or NewError so callers can use errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid value")
	ErrReadOnly           = errors.New("run is read-only")
	ErrPathEscape         = errors.New("path escapes run directory")
	ErrSpatialUnavailable = errors.New("spatial extension unavailable")
)

// Error carries a Kind alongside a human message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an *Error; err may be nil.
func NewError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err. Errors without an explicit Kind are
// classified through the sentinel errors; anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrPathEscape):
		return KindInvalidPayload
	case errors.Is(err, ErrReadOnly):
		return KindReadOnly
	default:
		return KindInternal
	}
}

// Invalidf returns an ErrInvalid-wrapping error with a human message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// NotFoundf returns an ErrNotFound-wrapping error with a human message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
