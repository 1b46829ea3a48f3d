package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a stable class of failure that is safe to expose to callers
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindDisabled             Kind = "disabled"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindConflict             Kind = "conflict"
	KindValidation           Kind = "validation"
	KindToolNotFound         Kind = "tool_not_found"
	KindConnect              Kind = "connect_error"
	KindHandshake            Kind = "handshake_error"
	KindUpstreamTimeout      Kind = "upstream_timeout"
	KindRemoteExecution      Kind = "remote_execution_error"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindInternal             Kind = "internal"
)

// Error is the structured error returned across service boundaries
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any error of the same kind when target is one of the bare
// sentinels below (Kind set, no message, no cause).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind that keeps cause in the chain
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels usable with errors.Is
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrDisabled             = &Error{Kind: KindDisabled}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrToolNotFound         = &Error{Kind: KindToolNotFound}
	ErrConnect              = &Error{Kind: KindConnect}
	ErrHandshake            = &Error{Kind: KindHandshake}
	ErrUpstreamTimeout      = &Error{Kind: KindUpstreamTimeout}
	ErrRemoteExecution      = &Error{Kind: KindRemoteExecution}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
)

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message for err. Unclassified errors
// get a generic message so internal details never reach the client.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error kind to the HTTP status code used on the wire
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound, KindToolNotFound:
		return http.StatusNotFound
	case KindDisabled, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConnect, KindHandshake:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindRemoteExecution:
		return http.StatusBadGateway
	case KindUnsupportedOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
