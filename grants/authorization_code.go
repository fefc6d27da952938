package grants

import (
	"context"

	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// AuthorizationCode exchanges a single-use authorization code for tokens
// (RFC 6749 §4.1.3).
type AuthorizationCode struct {
	*Base
}

// NewAuthorizationCode builds the grant over a validated Base.
func NewAuthorizationCode(cfg Config, model models.Model) (*AuthorizationCode, error) {
	base, err := NewBase(cfg, model)
	if err != nil {
		return nil, err
	}
	return &AuthorizationCode{Base: base}, nil
}

// Handle runs the exchange: fetch the code, validate ownership, expiry and
// redirect binding, consume the code, then issue fresh tokens.
func (g *AuthorizationCode) Handle(
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

	code, err := g.getAuthorizationCode(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if err := g.validateRedirectURI(req, code); err != nil {
		return nil, err
	}
	if err := g.revokeAuthorizationCode(ctx, code); err != nil {
		return nil, err
	}
	return g.saveToken(ctx, code, client)
}

// getAuthorizationCode resolves the presented code and enforces ownership
// and expiry. A resolved record missing its bound client or user means the
// backend broke the model contract.
func (g *AuthorizationCode) getAuthorizationCode(
	ctx context.Context,
	req *models.Request,
	client *models.Client,
) (*models.AuthorizationCode, error) {
	raw := req.BodyParam("code")
	if raw == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `code`")
	}
	if !validate.VSChar(raw) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `code`")
	}

	code, err := g.model.GetAuthorizationCode(ctx, raw)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if code == nil {
		return nil, oautherr.InvalidGrant("Invalid grant: authorization code is invalid")
	}
	if code.Client == nil {
		return nil, oautherr.ServerError(
			"Server error: `getAuthorizationCode()` did not return a `client` object", nil)
	}
	if code.User == nil {
		return nil, oautherr.ServerError(
			"Server error: `getAuthorizationCode()` did not return a `user` object", nil)
	}
	if code.Client.ID != client.ID {
		return nil, oautherr.InvalidGrant("Invalid grant: authorization code is invalid")
	}
	if code.ExpiresAt.IsZero() {
		return nil, oautherr.ServerError("Server error: `expiresAt` must be set", nil)
	}
	if code.Expired() {
		return nil, oautherr.InvalidGrant("Invalid grant: authorization code has expired")
	}
	if code.RedirectURI != "" && !validate.URI(code.RedirectURI) {
		return nil, oautherr.InvalidGrant("Invalid grant: `redirect_uri` is not a valid URI")
	}
	return code, nil
}

// validateRedirectURI enforces the RFC 6749 §4.1.3 binding: when the code
// was issued against a redirect URI, the exchange must repeat it exactly.
func (g *AuthorizationCode) validateRedirectURI(
	req *models.Request,
	code *models.AuthorizationCode,
) error {
	if code.RedirectURI == "" {
		return nil
	}
	redirectURI := req.Param("redirect_uri")
	if !validate.URI(redirectURI) {
		return oautherr.InvalidRequest("Invalid request: `redirect_uri` is not a valid URI")
	}
	if redirectURI != code.RedirectURI {
		return oautherr.InvalidRequest("Invalid request: `redirect_uri` is invalid")
	}
	return nil
}

// revokeAuthorizationCode consumes the code. The model reporting failure
// means the code was already spent; single-use stands.
func (g *AuthorizationCode) revokeAuthorizationCode(
	ctx context.Context,
	code *models.AuthorizationCode,
) error {
	ok, err := g.model.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return oautherr.Wrap(err)
	}
	if !ok {
		return oautherr.InvalidGrant("Invalid grant: authorization code is invalid")
	}
	return nil
}

// saveToken issues fresh access and refresh tokens carrying the scope the
// code was granted for.
func (g *AuthorizationCode) saveToken(
	ctx context.Context,
	code *models.AuthorizationCode,
	client *models.Client,
) (*models.Token, error) {
	accessToken, err := g.GenerateAccessToken(ctx, client, code.User, code.Scope)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.GenerateRefreshToken(ctx, client, code.User, code.Scope)
	if err != nil {
		return nil, err
	}

	accessExpiresAt := g.AccessTokenExpiresAt()
	refreshExpiresAt := g.RefreshTokenExpiresAt()

	tok := &models.Token{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  &accessExpiresAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: &refreshExpiresAt,
		Scope:                 code.Scope,
	}

	saved, err := g.model.SaveToken(ctx, tok, client, code.User)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if saved == nil {
		return nil, oautherr.ServerError("Server error: `saveToken()` did not return a token", nil)
	}
	return saved, nil
}
