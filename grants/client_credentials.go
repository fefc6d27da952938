package grants

import (
	"context"

	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// ClientCredentials issues machine-to-machine access tokens (RFC 6749 §4.4).
// No refresh token is issued for this grant (§4.4.3).
type ClientCredentials struct {
	*Base
}

// NewClientCredentials builds the grant over a validated Base.
func NewClientCredentials(cfg Config, model models.Model) (*ClientCredentials, error) {
	base, err := NewBase(cfg, model)
	if err != nil {
		return nil, err
	}
	return &ClientCredentials{Base: base}, nil
}

// Handle resolves the user identity bound to the client and issues a
// short-lived access token.
func (g *ClientCredentials) Handle(
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

	user, err := g.getUserFromClient(ctx, client)
	if err != nil {
		return nil, err
	}

	scope, err = g.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return nil, err
	}

	return g.saveToken(ctx, user, client, scope)
}

func (g *ClientCredentials) getUserFromClient(
	ctx context.Context,
	client *models.Client,
) (models.User, error) {
	user, err := g.model.GetUserFromClient(ctx, client)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if user == nil {
		return nil, oautherr.InvalidGrant("Invalid grant: user credentials are invalid")
	}
	return user, nil
}

func (g *ClientCredentials) saveToken(
	ctx context.Context,
	user models.User,
	client *models.Client,
	scope string,
) (*models.Token, error) {
	accessToken, err := g.GenerateAccessToken(ctx, client, user, scope)
	if err != nil {
		return nil, err
	}
	accessExpiresAt := g.AccessTokenExpiresAt()

	tok := &models.Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: &accessExpiresAt,
		Scope:                scope,
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
