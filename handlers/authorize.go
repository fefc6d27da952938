package handlers

import (
	"context"
	"net/url"
	"time"

	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/metrics"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
	"github.com/cjjenkinson/ephemeral-oauth/token"
)

// DefaultAuthorizationCodeLifetime is applied when no lifetime is configured.
const DefaultAuthorizationCodeLifetime = 5 * time.Minute

// Authenticator resolves the resource owner behind an authorize request.
// The default implementation runs the bearer-token check and returns the
// token's bound user.
type Authenticator func(ctx context.Context, req *models.Request) (models.User, error)

// AuthorizeOptions configures the authorization endpoint.
type AuthorizeOptions struct {
	Model models.Model

	// AllowEmptyState permits requests without a state parameter.
	AllowEmptyState bool

	// AuthorizationCodeLifetime bounds minted codes. Defaults to
	// DefaultAuthorizationCodeLifetime.
	AuthorizationCodeLifetime time.Duration

	// Authenticator overrides how the resource owner is resolved.
	Authenticator Authenticator

	Metrics metrics.Recorder
}

// AuthorizeHandler implements the authorization endpoint: it validates the
// client, redirect URI, scope, and state, resolves the authenticated user,
// mints and persists a short-lived authorization code, and answers with a
// redirect.
type AuthorizeHandler struct {
	opts     AuthorizeOptions
	codeGen  models.AuthorizationCodeGenerator
	scopeVal models.ScopeValidator
}

// NewAuthorizeHandler validates options, applies defaults, and probes the
// model's optional capabilities once.
func NewAuthorizeHandler(opts AuthorizeOptions) (*AuthorizeHandler, error) {
	if opts.Model == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `model`")
	}
	if opts.AuthorizationCodeLifetime <= 0 {
		opts.AuthorizationCodeLifetime = DefaultAuthorizationCodeLifetime
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Authenticator == nil {
		authn, err := NewAuthenticateHandler(AuthenticateOptions{
			Model:   opts.Model,
			Metrics: opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		opts.Authenticator = func(ctx context.Context, req *models.Request) (models.User, error) {
			accessToken, err := authn.Handle(ctx, req)
			if err != nil {
				return nil, err
			}
			return accessToken.User, nil
		}
	}

	h := &AuthorizeHandler{opts: opts}
	h.codeGen, _ = opts.Model.(models.AuthorizationCodeGenerator)
	h.scopeVal, _ = opts.Model.(models.ScopeValidator)
	return h, nil
}

// Handle runs the authorization flow. Failures after the redirect URI is
// known are converted into error redirects carrying the RFC 6749 error and
// error_description parameters; earlier failures propagate as errors so the
// transport layer owns their presentation.
func (h *AuthorizeHandler) Handle(ctx context.Context, req *models.Request) (*Response, error) {
	if req == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `request`")
	}

	state := req.Param("state")

	client, err := h.getClient(ctx, req)
	if err != nil {
		h.opts.Metrics.RecordAuthorization(false)
		return nil, err
	}

	// From here on the redirect URI is resolvable, so errors redirect.
	redirectURI := h.getRedirectURI(req, client)

	resp, err := h.authorize(ctx, req, client, redirectURI, state)
	if err != nil {
		h.opts.Metrics.RecordAuthorization(false)
		return errorRedirect(redirectURI, state, err)
	}
	h.opts.Metrics.RecordAuthorization(true)
	return resp, nil
}

func (h *AuthorizeHandler) authorize(ctx context.Context, req *models.Request, client *models.Client, redirectURI, state string) (*Response, error) {
	if err := h.validateResponseType(req); err != nil {
		return nil, err
	}

	user, err := h.getUser(ctx, req)
	if err != nil {
		return nil, err
	}

	scope, err := h.getScope(ctx, req, client, user)
	if err != nil {
		return nil, err
	}
	if err := h.validateState(state); err != nil {
		return nil, err
	}

	code, err := h.generateAuthorizationCode(ctx, client, user)
	if err != nil {
		return nil, err
	}
	authorizationCode := &models.AuthorizationCode{
		Code:        code,
		ExpiresAt:   time.Now().Add(h.opts.AuthorizationCodeLifetime),
		RedirectURI: redirectURI,
		Scope:       scope,
		Client:      client,
		User:        user,
	}
	if err := h.opts.Model.SaveAuthorizationCode(ctx, authorizationCode, client, user); err != nil {
		return nil, oautherr.Wrap(err)
	}

	return successRedirect(redirectURI, code, state)
}

func (h *AuthorizeHandler) validateResponseType(req *models.Request) error {
	responseType := req.Param("response_type")
	if responseType == "" {
		return oautherr.InvalidRequest("Missing parameter: `response_type`")
	}
	if responseType != "code" {
		return oautherr.UnsupportedResponseType("Unsupported response type: `response_type` is not supported")
	}
	return nil
}

// getClient resolves and validates the client before any redirect URI is
// trusted, so its failures never leak into a redirect.
func (h *AuthorizeHandler) getClient(ctx context.Context, req *models.Request) (*models.Client, error) {
	clientID := req.Param("client_id")
	if clientID == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `client_id`")
	}
	if !validate.VSChar(clientID) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `client_id`")
	}
	redirectURI := req.Param("redirect_uri")
	if redirectURI != "" && !validate.URI(redirectURI) {
		return nil, oautherr.InvalidRequest("Invalid request: `redirect_uri` is not a valid URI")
	}

	client, err := h.opts.Model.GetClient(ctx, clientID, "")
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if client == nil {
		return nil, oautherr.InvalidClient("Invalid client: client credentials are invalid")
	}
	if !client.AllowsGrant("authorization_code") {
		return nil, oautherr.UnauthorizedClient("Unauthorized client: `grant_type` is invalid")
	}
	if len(client.RedirectURIs) == 0 {
		return nil, oautherr.InvalidClient("Invalid client: missing client `redirectUri`")
	}
	if redirectURI != "" && !client.AllowsRedirectURI(redirectURI) {
		return nil, oautherr.InvalidClient("Invalid client: `redirect_uri` does not match client value")
	}
	return client, nil
}

// getRedirectURI prefers the request parameter, already validated against the
// client's registered list, over the client's first registered URI.
func (h *AuthorizeHandler) getRedirectURI(req *models.Request, client *models.Client) string {
	if redirectURI := req.Param("redirect_uri"); redirectURI != "" {
		return redirectURI
	}
	return client.RedirectURIs[0]
}

func (h *AuthorizeHandler) getUser(ctx context.Context, req *models.Request) (models.User, error) {
	user, err := h.opts.Authenticator(ctx, req)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if user == nil {
		return nil, oautherr.ServerError(
			"Server error: `handleAuthorize()` did not return a `user` object", nil)
	}
	return user, nil
}

func (h *AuthorizeHandler) getScope(ctx context.Context, req *models.Request, client *models.Client, user models.User) (string, error) {
	scope := req.Param("scope")
	if !validate.NQSChar(scope) {
		return "", oautherr.InvalidScope("Invalid parameter: `scope`")
	}
	if h.scopeVal == nil || scope == "" {
		return scope, nil
	}
	validated, err := h.scopeVal.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return "", oautherr.Wrap(err)
	}
	if validated == "" {
		return "", oautherr.InvalidScope("Invalid scope: Requested scope is invalid")
	}
	return validated, nil
}

func (h *AuthorizeHandler) validateState(state string) error {
	if state == "" {
		if h.opts.AllowEmptyState {
			return nil
		}
		return oautherr.InvalidRequest("Missing parameter: `state`")
	}
	if !validate.VSChar(state) {
		return oautherr.InvalidRequest("Invalid parameter: `state`")
	}
	return nil
}

func (h *AuthorizeHandler) generateAuthorizationCode(ctx context.Context, client *models.Client, user models.User) (string, error) {
	if h.codeGen != nil {
		code, err := h.codeGen.GenerateAuthorizationCode(ctx, client, user)
		if err != nil {
			return "", oautherr.Wrap(err)
		}
		return code, nil
	}
	return token.GenerateRandom()
}

func successRedirect(redirectURI, code, state string) (*Response, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, oautherr.ServerError("Server error: `redirect_uri` could not be parsed", nil)
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return NewRedirect(u.String()), nil
}

// errorRedirect shapes a failure as an RFC 6749 §4.1.2.1 error redirect. The
// original error is swallowed; the redirect is the response.
func errorRedirect(redirectURI, state string, cause error) (*Response, error) {
	oerr := oautherr.Wrap(cause)

	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, oerr
	}
	q := u.Query()
	q.Set("error", string(oerr.Kind))
	if oerr.Message != "" {
		q.Set("error_description", oerr.Message)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return NewRedirect(u.String()), nil
}
