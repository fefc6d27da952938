// Package oautherr defines the closed error taxonomy shared by every
// component of the authorization-server core. Handlers and grant types never
// raise a bare error: every failure is an *Error tagged with a Kind whose
// name is the wire-visible OAuth error code (RFC 6749 §5.2, RFC 6750 §3.1).
package oautherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one failure class. The string value is the exact error
// code surfaced to clients in the `error` response field.
type Kind string

const (
	KindInvalidRequest          Kind = "invalid_request"
	KindInvalidClient           Kind = "invalid_client"
	KindInvalidGrant            Kind = "invalid_grant"
	KindInvalidScope            Kind = "invalid_scope"
	KindInvalidToken            Kind = "invalid_token"
	KindUnauthorizedClient      Kind = "unauthorized_client"
	KindUnauthorizedRequest     Kind = "unauthorized_request"
	KindUnsupportedGrantType    Kind = "unsupported_grant_type"
	KindUnsupportedResponseType Kind = "unsupported_response_type"
	KindAccessDenied            Kind = "access_denied"
	KindInsufficientScope       Kind = "insufficient_scope"
	KindInvalidArgument         Kind = "invalid_argument"
	KindServerError             Kind = "server_error"
)

// statusCodes maps each kind to its default HTTP status.
var statusCodes = map[Kind]int{
	KindInvalidRequest:          http.StatusBadRequest,
	KindInvalidClient:           http.StatusBadRequest,
	KindInvalidGrant:            http.StatusBadRequest,
	KindInvalidScope:            http.StatusBadRequest,
	KindInvalidToken:            http.StatusUnauthorized,
	KindUnauthorizedClient:      http.StatusBadRequest,
	KindUnauthorizedRequest:     http.StatusUnauthorized,
	KindUnsupportedGrantType:    http.StatusBadRequest,
	KindUnsupportedResponseType: http.StatusBadRequest,
	KindAccessDenied:            http.StatusBadRequest,
	KindInsufficientScope:       http.StatusForbidden,
	KindInvalidArgument:         http.StatusInternalServerError,
	KindServerError:             http.StatusServiceUnavailable,
}

// Status returns the default HTTP status for a kind. Unknown kinds map to
// 503, matching server_error.
func (k Kind) Status() int {
	if status, ok := statusCodes[k]; ok {
		return status
	}
	return http.StatusServiceUnavailable
}

// Error is the sole error representation threaded through the core.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	// Context carries internal diagnostics for server_error. It is never
	// serialized onto the wire.
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports kind equality, so errors.Is(err, &Error{Kind: k}) and the
// sentinel comparisons in tests match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with its default status.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  kind.Status(),
	}
}

func InvalidRequest(message string) *Error  { return New(KindInvalidRequest, message) }
func InvalidClient(message string) *Error   { return New(KindInvalidClient, message) }
func InvalidGrant(message string) *Error    { return New(KindInvalidGrant, message) }
func InvalidScope(message string) *Error    { return New(KindInvalidScope, message) }
func InvalidToken(message string) *Error    { return New(KindInvalidToken, message) }
func InvalidArgument(message string) *Error { return New(KindInvalidArgument, message) }

func UnauthorizedClient(message string) *Error  { return New(KindUnauthorizedClient, message) }
func UnauthorizedRequest(message string) *Error { return New(KindUnauthorizedRequest, message) }

func UnsupportedGrantType(message string) *Error { return New(KindUnsupportedGrantType, message) }

func UnsupportedResponseType(message string) *Error {
	return New(KindUnsupportedResponseType, message)
}

func AccessDenied(message string) *Error      { return New(KindAccessDenied, message) }
func InsufficientScope(message string) *Error { return New(KindInsufficientScope, message) }

// ServerError builds a server_error carrying diagnostic context. Context is
// for operators; only Kind and Message ever reach the response surface.
func ServerError(message string, context map[string]any) *Error {
	e := New(KindServerError, message)
	e.Context = context
	return e
}

// WithStatus overrides the default HTTP status, e.g. invalid_client raised
// as 401 when the client attempted header authentication (RFC 6749 §5.2).
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// Wrap passes *Error values through unchanged and converts anything else
// into a server_error preserving the cause for errors.Is / errors.As.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	wrapped := New(KindServerError, err.Error())
	wrapped.cause = err
	return wrapped
}
