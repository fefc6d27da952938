package models

import (
	"slices"
	"time"
)

// Client is an OAuth client as resolved by the model backend. The core
// treats it as an immutable value for the duration of one request.
type Client struct {
	ID           string
	Secret       string
	Grants       []string
	RedirectURIs []string

	// Optional per-client lifetime overrides. Zero means "use the
	// handler-level default".
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
}

// AllowsGrant reports whether the client is registered for the grant name.
func (c *Client) AllowsGrant(grantType string) bool {
	return slices.Contains(c.Grants, grantType)
}

// AllowsRedirectURI reports whether uri exactly matches a registered
// redirect URI (RFC 6749 §3.1.2.3 requires exact comparison).
func (c *Client) AllowsRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}
