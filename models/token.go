package models

import "time"

// User is the opaque identity value returned by the model. The core never
// inspects its shape, only its presence.
type User any

// Token is the only entity returned to callers of the token endpoint.
// Expiry fields are pointers: a nil expiry means "no expiry supplied".
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  *time.Time
	RefreshToken          string
	RefreshTokenExpiresAt *time.Time
	Scope                 string
	Client                *Client
	User                  User

	// Extra carries model-supplied extended attributes. They are copied
	// into the response only when extended attributes are enabled.
	Extra map[string]any
}

// AccessTokenExpired reports whether the access token expiry is set and in
// the past.
func (t *Token) AccessTokenExpired() bool {
	return t.AccessTokenExpiresAt != nil && t.AccessTokenExpiresAt.Before(time.Now())
}

// RefreshTokenExpired reports whether the refresh token expiry is set and in
// the past.
func (t *Token) RefreshTokenExpired() bool {
	return t.RefreshTokenExpiresAt != nil && t.RefreshTokenExpiresAt.Before(time.Now())
}

// AuthorizationCode is a short-lived single-use credential minted by the
// authorize endpoint and redeemed at the token endpoint.
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scope       string
	Client      *Client
	User        User
}

// Expired reports whether the code is past its expiry.
func (c *AuthorizationCode) Expired() bool {
	return c.ExpiresAt.Before(time.Now())
}
