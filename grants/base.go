// Package grants implements the RFC 6749 grant-type state machines. Each
// grant type is a small struct over Base, constructed per request with the
// effective lifetime configuration, and produces an unvalidated token record
// that the token handler normalizes before it leaves the system.
package grants

import (
	"context"
	"time"

	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
	"github.com/cjjenkinson/ephemeral-oauth/token"
)

// Grant-type wire names (RFC 6749 §§4.1, 4.3, 4.4, 6).
const (
	TypeAuthorizationCode = "authorization_code"
	TypeClientCredentials = "client_credentials"
	TypePassword          = "password"
	TypeRefreshToken      = "refresh_token"
)

// Config carries the per-request grant configuration computed by the token
// handler (client overrides already applied). Plain values, no captured
// state.
type Config struct {
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration

	// IssueNewRefreshToken gates refresh-token rotation: when false, the
	// refresh-token grant reuses the presented token unchanged.
	IssueNewRefreshToken bool
}

// GrantType is one exchange flow: validate the request, authenticate the
// subject, and issue a token record bound to client and user.
type GrantType interface {
	Handle(ctx context.Context, req *models.Request, client *models.Client) (*models.Token, error)
}

// Base bundles the model with the shared issuance helpers every grant type
// uses. Optional model capabilities are probed once here, not per call.
type Base struct {
	cfg   Config
	model models.Model

	accessGen  models.AccessTokenGenerator
	refreshGen models.RefreshTokenGenerator
	scopeVal   models.ScopeValidator
}

// NewBase validates the configuration and probes the model's optional
// capabilities.
func NewBase(cfg Config, model models.Model) (*Base, error) {
	if cfg.AccessTokenLifetime <= 0 {
		return nil, oautherr.InvalidArgument("Missing parameter: `accessTokenLifetime`")
	}
	if model == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `model`")
	}

	b := &Base{cfg: cfg, model: model}
	if gen, ok := model.(models.AccessTokenGenerator); ok {
		b.accessGen = gen
	}
	if gen, ok := model.(models.RefreshTokenGenerator); ok {
		b.refreshGen = gen
	}
	if v, ok := model.(models.ScopeValidator); ok {
		b.scopeVal = v
	}
	return b, nil
}

// GenerateAccessToken delegates to the model's generator when present, else
// mints a random opaque token.
func (b *Base) GenerateAccessToken(
	ctx context.Context,
	client *models.Client,
	user models.User,
	scope string,
) (string, error) {
	if b.accessGen != nil {
		accessToken, err := b.accessGen.GenerateAccessToken(ctx, client, user, scope)
		if err != nil {
			return "", oautherr.Wrap(err)
		}
		return accessToken, nil
	}
	accessToken, err := token.GenerateRandom()
	if err != nil {
		return "", oautherr.Wrap(err)
	}
	return accessToken, nil
}

// GenerateRefreshToken delegates to the model's generator when present, else
// mints a random opaque token.
func (b *Base) GenerateRefreshToken(
	ctx context.Context,
	client *models.Client,
	user models.User,
	scope string,
) (string, error) {
	if b.refreshGen != nil {
		refreshToken, err := b.refreshGen.GenerateRefreshToken(ctx, client, user, scope)
		if err != nil {
			return "", oautherr.Wrap(err)
		}
		return refreshToken, nil
	}
	refreshToken, err := token.GenerateRandom()
	if err != nil {
		return "", oautherr.Wrap(err)
	}
	return refreshToken, nil
}

// AccessTokenExpiresAt returns now + the configured access-token lifetime.
func (b *Base) AccessTokenExpiresAt() time.Time {
	return time.Now().Add(b.cfg.AccessTokenLifetime)
}

// RefreshTokenExpiresAt returns now + the configured refresh-token lifetime.
func (b *Base) RefreshTokenExpiresAt() time.Time {
	return time.Now().Add(b.cfg.RefreshTokenLifetime)
}

// Scope extracts and syntax-checks the scope parameter from the request
// body. Scope is optional; a present value must be nqschar-clean.
func (b *Base) Scope(req *models.Request) (string, error) {
	scope := req.BodyParam("scope")
	if !validate.NQSChar(scope) {
		return "", oautherr.InvalidScope("Invalid parameter: `scope`")
	}
	return scope, nil
}

// ValidateScope delegates to the model's scope validator when present. A
// validator returning an empty scope rejects the request.
func (b *Base) ValidateScope(
	ctx context.Context,
	user models.User,
	client *models.Client,
	scope string,
) (string, error) {
	if b.scopeVal == nil {
		return scope, nil
	}
	validated, err := b.scopeVal.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return "", oautherr.Wrap(err)
	}
	if validated == "" && scope != "" {
		return "", oautherr.InvalidScope("Invalid scope: Requested scope is invalid")
	}
	return validated, nil
}
