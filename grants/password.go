package grants

import (
	"context"

	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// Password implements the resource-owner password credentials grant
// (RFC 6749 §4.3).
type Password struct {
	*Base
}

// NewPassword builds the grant over a validated Base.
func NewPassword(cfg Config, model models.Model) (*Password, error) {
	base, err := NewBase(cfg, model)
	if err != nil {
		return nil, err
	}
	return &Password{Base: base}, nil
}

// Handle validates the credentials, resolves the resource owner, and issues
// access and refresh tokens.
func (g *Password) Handle(
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

	scope, err := g.Scope(req)
	if err != nil {
		return nil, err
	}

	user, err := g.getUser(ctx, req)
	if err != nil {
		return nil, err
	}

	scope, err = g.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return nil, err
	}

	return g.saveToken(ctx, user, client, scope)
}

// getUser resolves the resource owner from the username/password pair. The
// model returning no user means the credentials are bad, not that the
// backend failed.
func (g *Password) getUser(ctx context.Context, req *models.Request) (models.User, error) {
	username := req.BodyParam("username")
	password := req.BodyParam("password")

	if username == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `username`")
	}
	if password == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `password`")
	}
	if !validate.VSChar(username) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `username`")
	}
	if !validate.VSChar(password) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `password`")
	}

	user, err := g.model.GetUser(ctx, username, password)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if user == nil {
		return nil, oautherr.InvalidGrant("Invalid grant: user credentials are invalid")
	}
	return user, nil
}

func (g *Password) saveToken(
	ctx context.Context,
	user models.User,
	client *models.Client,
	scope string,
) (*models.Token, error) {
	accessToken, err := g.GenerateAccessToken(ctx, client, user, scope)
	if err != nil {
		return nil, err
	}
	refreshToken, err := g.GenerateRefreshToken(ctx, client, user, scope)
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
		Scope:                 scope,
	}

	saved, err := g.model.SaveToken(ctx, tok, client, user)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if saved == nil {
		return nil, oautherr.ServerError("Server error: `saveToken()` did not return a token", nil)
	}
	return saved, nil
}
