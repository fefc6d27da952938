package grants

import (
	"context"

	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// RefreshToken exchanges a refresh token for a fresh access token
// (RFC 6749 §6). Rotation of the refresh token itself is gated by
// Config.IssueNewRefreshToken.
type RefreshToken struct {
	*Base
}

// NewRefreshToken builds the grant over a validated Base.
func NewRefreshToken(cfg Config, model models.Model) (*RefreshToken, error) {
	base, err := NewBase(cfg, model)
	if err != nil {
		return nil, err
	}
	return &RefreshToken{Base: base}, nil
}

// Handle fetches and validates the presented refresh token, conditionally
// revokes it, and issues the replacement token record.
func (g *RefreshToken) Handle(
	ctx context.Context,
	req *models.Request,
	client *models.Client,
) (*models.Token, error) {
	if req == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `request`")
	}
	if client == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `client`")
	}

	old, err := g.getRefreshToken(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if err := g.revokeToken(ctx, old); err != nil {
		return nil, err
	}
	return g.saveToken(ctx, old, client)
}

// getRefreshToken resolves the presented token and enforces ownership and
// expiry, mirroring the authorization-code checks.
func (g *RefreshToken) getRefreshToken(
	ctx context.Context,
	req *models.Request,
	client *models.Client,
) (*models.Token, error) {
	raw := req.BodyParam("refresh_token")
	if raw == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `refresh_token`")
	}
	if !validate.VSChar(raw) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `refresh_token`")
	}

	tok, err := g.model.GetRefreshToken(ctx, raw)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if tok == nil {
		return nil, oautherr.InvalidGrant("Invalid grant: refresh token is invalid")
	}
	if tok.Client == nil {
		return nil, oautherr.ServerError(
			"Server error: `getRefreshToken()` did not return a `client` object", nil)
	}
	if tok.User == nil {
		return nil, oautherr.ServerError(
			"Server error: `getRefreshToken()` did not return a `user` object", nil)
	}
	if tok.Client.ID != client.ID {
		return nil, oautherr.InvalidGrant("Invalid grant: refresh token is invalid")
	}
	if tok.RefreshTokenExpired() {
		return nil, oautherr.InvalidGrant("Invalid grant: refresh token has expired")
	}
	return tok, nil
}

// revokeToken invalidates the old refresh token, but only in rotation mode.
// In reuse mode the original token stays live and is carried forward.
func (g *RefreshToken) revokeToken(ctx context.Context, tok *models.Token) error {
	if !g.cfg.IssueNewRefreshToken {
		return nil
	}
	ok, err := g.model.RevokeToken(ctx, tok)
	if err != nil {
		return oautherr.Wrap(err)
	}
	if !ok {
		return oautherr.InvalidGrant("Invalid grant: refresh token is invalid")
	}
	return nil
}

// saveToken always mints a new access token; the refresh token rotates or is
// reused per configuration.
func (g *RefreshToken) saveToken(
	ctx context.Context,
	old *models.Token,
	client *models.Client,
) (*models.Token, error) {
	accessToken, err := g.GenerateAccessToken(ctx, client, old.User, old.Scope)
	if err != nil {
		return nil, err
	}
	accessExpiresAt := g.AccessTokenExpiresAt()

	tok := &models.Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: &accessExpiresAt,
		Scope:                old.Scope,
	}

	if g.cfg.IssueNewRefreshToken {
		refreshToken, err := g.GenerateRefreshToken(ctx, client, old.User, old.Scope)
		if err != nil {
			return nil, err
		}
		refreshExpiresAt := g.RefreshTokenExpiresAt()
		tok.RefreshToken = refreshToken
		tok.RefreshTokenExpiresAt = &refreshExpiresAt
	} else {
		tok.RefreshToken = old.RefreshToken
		tok.RefreshTokenExpiresAt = old.RefreshTokenExpiresAt
	}

	saved, err := g.model.SaveToken(ctx, tok, client, old.User)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if saved == nil {
		return nil, oautherr.ServerError("Server error: `saveToken()` did not return a token", nil)
	}
	return saved, nil
}
