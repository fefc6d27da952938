// Package handlers contains the three stateless entry points of the core:
// the token endpoint, the authorize endpoint, and the bearer-token check.
// Each consumes a normalized models.Request and produces a transport-neutral
// Response, so the same handlers serve an HTTP router or a
// function-as-a-service runtime unchanged.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// Response is the transport-neutral result of a handler invocation.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       map[string]any
}

// JSON marshals the response body. A body-less response yields nil.
func (r *Response) JSON() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return json.Marshal(r.Body)
}

// NewRedirect builds a 302 response pointing at location.
func NewRedirect(location string) *Response {
	return &Response{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": location},
	}
}

// ErrorResponse shapes an error into the RFC 6749 §5.2 error body. Non-
// taxonomy errors are wrapped as server_error first. An invalid_client
// raised at 401 carries the WWW-Authenticate challenge (§5.2).
func ErrorResponse(err error) *Response {
	oe := oautherr.Wrap(err)
	resp := &Response{
		StatusCode: oe.Status,
		Headers: map[string]string{
			"Content-Type":  "application/json;charset=UTF-8",
			"Cache-Control": "no-store",
			"Pragma":        "no-cache",
		},
		Body: map[string]any{
			"error":             string(oe.Kind),
			"error_description": oe.Message,
		},
	}
	if oe.Kind == oautherr.KindInvalidClient && oe.Status == http.StatusUnauthorized {
		resp.Headers["WWW-Authenticate"] = `Basic realm="Service"`
	}
	return resp
}

func newJSONResponse(status int, body map[string]any) *Response {
	return &Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":  "application/json;charset=UTF-8",
			"Cache-Control": "no-store",
			"Pragma":        "no-cache",
		},
		Body: body,
	}
}
