package models

import (
	"mime"
	"net/http"
	"strings"
)

// Request is the core's only view of an inbound request, independent of the
// originating transport. Adapters normalize platform events into this shape.
type Request struct {
	Headers http.Header
	Method  string
	Query   map[string]string
	Body    map[string]string
}

// BodyParam returns the named body field, or "" when absent.
func (r *Request) BodyParam(name string) string {
	if r.Body == nil {
		return ""
	}
	return r.Body[name]
}

// QueryParam returns the named query parameter, or "" when absent.
func (r *Request) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[name]
}

// Param returns the body value when present, falling back to the query
// string. The authorize endpoint accepts its parameters in either location.
func (r *Request) Param(name string) string {
	if v := r.BodyParam(name); v != "" {
		return v
	}
	return r.QueryParam(name)
}

// IsFormEncoded reports whether the Content-Type header declares
// application/x-www-form-urlencoded, ignoring parameters such as charset.
func (r *Request) IsFormEncoded() bool {
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// Tolerate bare values like "application/x-www-form-urlencoded;"
		mediaType = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	return mediaType == "application/x-www-form-urlencoded"
}
