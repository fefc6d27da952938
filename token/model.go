// Package token normalizes raw token records into the RFC 6749 wire
// response and provides the built-in token generators.
package token

import (
	"time"

	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// Model is a token record validated against the shape invariants the core
// guarantees before anything leaves the system.
type Model struct {
	AccessToken           string
	AccessTokenExpiresAt  *time.Time
	RefreshToken          string
	RefreshTokenExpiresAt *time.Time
	Scope                 string
	Client                *models.Client
	User                  models.User

	// AccessTokenLifetime is the whole seconds remaining until the access
	// token expires, computed from AccessTokenExpiresAt when present.
	AccessTokenLifetime int64

	// CustomAttributes holds model-supplied extended attributes, populated
	// only when allowExtended is set.
	CustomAttributes map[string]any
}

// NewModel validates a raw token record returned by a grant type. A record
// missing accessToken, client or user violates the model contract.
func NewModel(data *models.Token, allowExtended bool) (*Model, error) {
	if data == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `token`")
	}
	if data.AccessToken == "" {
		return nil, oautherr.InvalidArgument("Missing parameter: `accessToken`")
	}
	if data.Client == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `client`")
	}
	if data.User == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `user`")
	}
	if data.AccessTokenExpiresAt != nil && data.AccessTokenExpiresAt.IsZero() {
		return nil, oautherr.InvalidArgument("Invalid parameter: `accessTokenExpiresAt`")
	}
	if data.RefreshTokenExpiresAt != nil && data.RefreshTokenExpiresAt.IsZero() {
		return nil, oautherr.InvalidArgument("Invalid parameter: `refreshTokenExpiresAt`")
	}

	m := &Model{
		AccessToken:           data.AccessToken,
		AccessTokenExpiresAt:  data.AccessTokenExpiresAt,
		RefreshToken:          data.RefreshToken,
		RefreshTokenExpiresAt: data.RefreshTokenExpiresAt,
		Scope:                 data.Scope,
		Client:                data.Client,
		User:                  data.User,
	}

	if allowExtended && len(data.Extra) > 0 {
		m.CustomAttributes = make(map[string]any, len(data.Extra))
		for k, v := range data.Extra {
			if v != nil {
				m.CustomAttributes[k] = v
			}
		}
	}

	if m.AccessTokenExpiresAt != nil {
		m.AccessTokenLifetime = int64(time.Until(*m.AccessTokenExpiresAt).Seconds())
	}

	return m, nil
}
