// Package adapter normalizes platform-specific invocation events into the
// request shape the core consumes, and maps handler responses back out.
package adapter

import (
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/cjjenkinson/ephemeral-oauth/handlers"
	"github.com/cjjenkinson/ephemeral-oauth/models"
)

// FromHTTPRequest normalizes a net/http request. The body is consumed when
// it is form-encoded.
func FromHTTPRequest(r *http.Request) (*models.Request, error) {
	req := &models.Request{
		Headers: r.Header,
		Method:  r.Method,
		Query:   flattenValues(r.URL.Query()),
		Body:    map[string]string{},
	}
	if r.Body != nil && req.IsFormEncoded() {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		req.Body = flattenValues(r.PostForm)
	}
	return req, nil
}

// FromGinContext normalizes a gin request.
func FromGinContext(c *gin.Context) (*models.Request, error) {
	return FromHTTPRequest(c.Request)
}

// ProxyEvent is the shape of a FaaS HTTP proxy invocation.
type ProxyEvent struct {
	HTTPMethod            string            `json:"httpMethod"`
	Headers               map[string]string `json:"headers"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
}

// ProxyResult is the proxy response counterpart.
type ProxyResult struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// FromProxyEvent normalizes a proxy event. A form-encoded body is decoded
// into the body map; anything else is left empty.
func FromProxyEvent(event ProxyEvent) (*models.Request, error) {
	headers := http.Header{}
	for name, value := range event.Headers {
		headers.Set(name, value)
	}

	req := &models.Request{
		Headers: headers,
		Method:  event.HTTPMethod,
		Query:   event.QueryStringParameters,
		Body:    map[string]string{},
	}
	if req.Query == nil {
		req.Query = map[string]string{}
	}

	if event.Body != "" && req.IsFormEncoded() {
		raw := event.Body
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return nil, err
			}
			raw = string(decoded)
		}
		values, err := url.ParseQuery(raw)
		if err != nil {
			return nil, err
		}
		req.Body = flattenValues(values)
	}
	return req, nil
}

// WriteResponse maps a handler response onto a net/http writer.
func WriteResponse(w http.ResponseWriter, resp *handlers.Response) error {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	w.WriteHeader(resp.StatusCode)
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// ToProxyResult maps a handler response onto a proxy result.
func ToProxyResult(resp *handlers.Response) (ProxyResult, error) {
	result := ProxyResult{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{},
	}
	for name, value := range resp.Headers {
		result.Headers[name] = value
	}
	body, err := resp.JSON()
	if err != nil {
		return ProxyResult{}, err
	}
	result.Body = string(body)
	return result, nil
}

func flattenValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for name, list := range values {
		if len(list) > 0 {
			out[name] = list[0]
		}
	}
	return out
}
