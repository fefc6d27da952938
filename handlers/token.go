package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cjjenkinson/ephemeral-oauth/grants"
	"github.com/cjjenkinson/ephemeral-oauth/internal/validate"
	"github.com/cjjenkinson/ephemeral-oauth/metrics"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
	"github.com/cjjenkinson/ephemeral-oauth/token"
)

// Default lifetimes (RFC 6749 leaves these to the server; the original
// implementation uses 1 hour and 2 weeks).
const (
	DefaultAccessTokenLifetime  = time.Hour
	DefaultRefreshTokenLifetime = 14 * 24 * time.Hour
)

// GrantConstructor builds a grant type for one request with the effective
// per-request configuration. Callers register additional grant types through
// TokenOptions.ExtendedGrantTypes.
type GrantConstructor func(cfg grants.Config, model models.Model) (grants.GrantType, error)

// builtinGrantTypes binds each supported grant name to its handler at
// compile time; an unrecognized name maps to unsupported_grant_type.
var builtinGrantTypes = map[string]GrantConstructor{
	grants.TypeAuthorizationCode: func(cfg grants.Config, m models.Model) (grants.GrantType, error) {
		return grants.NewAuthorizationCode(cfg, m)
	},
	grants.TypeClientCredentials: func(cfg grants.Config, m models.Model) (grants.GrantType, error) {
		return grants.NewClientCredentials(cfg, m)
	},
	grants.TypePassword: func(cfg grants.Config, m models.Model) (grants.GrantType, error) {
		return grants.NewPassword(cfg, m)
	},
	grants.TypeRefreshToken: func(cfg grants.Config, m models.Model) (grants.GrantType, error) {
		return grants.NewRefreshToken(cfg, m)
	},
}

// TokenOptions configures the token endpoint.
type TokenOptions struct {
	Model models.Model

	// Lifetimes default to DefaultAccessTokenLifetime /
	// DefaultRefreshTokenLifetime when zero. Per-client overrides on the
	// resolved Client take precedence.
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration

	// AlwaysIssueNewRefreshToken gates refresh-token rotation. It is a
	// required choice: leaving it nil fails construction rather than
	// silently picking a rotation policy.
	AlwaysIssueNewRefreshToken *bool

	// AllowExtendedTokenAttributes copies model-supplied extra token
	// attributes into the response body.
	AllowExtendedTokenAttributes bool

	// RequireClientAuthentication overrides, per grant name, whether a
	// client secret is required. A grant absent from the map requires
	// authentication.
	RequireClientAuthentication map[string]bool

	// ExtendedGrantTypes registers caller-supplied grant types by wire
	// name, consulted after the built-in set.
	ExtendedGrantTypes map[string]GrantConstructor

	Metrics metrics.Recorder
}

// TokenHandler is the token-endpoint orchestrator: it authenticates the
// client, dispatches to the requested grant type, validates the issued
// record and shapes the RFC 6749 response.
type TokenHandler struct {
	opts       TokenOptions
	grantTypes map[string]GrantConstructor
}

// NewTokenHandler validates options and resolves defaults.
func NewTokenHandler(opts TokenOptions) (*TokenHandler, error) {
	if opts.Model == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `model`")
	}
	if opts.AlwaysIssueNewRefreshToken == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `alwaysIssueNewRefreshToken`")
	}
	if opts.AccessTokenLifetime == 0 {
		opts.AccessTokenLifetime = DefaultAccessTokenLifetime
	}
	if opts.RefreshTokenLifetime == 0 {
		opts.RefreshTokenLifetime = DefaultRefreshTokenLifetime
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	registry := make(map[string]GrantConstructor, len(builtinGrantTypes)+len(opts.ExtendedGrantTypes))
	for name, ctor := range builtinGrantTypes {
		registry[name] = ctor
	}
	for name, ctor := range opts.ExtendedGrantTypes {
		registry[name] = ctor
	}

	return &TokenHandler{opts: opts, grantTypes: registry}, nil
}

// Handle runs one token exchange. Failures come back as *oautherr.Error;
// anything unexpected is wrapped as server_error before leaving.
func (h *TokenHandler) Handle(ctx context.Context, req *models.Request) (*Response, error) {
	start := time.Now()
	grantType := ""
	if req != nil {
		grantType = req.BodyParam("grant_type")
	}

	resp, err := h.handle(ctx, req)
	if err != nil {
		oe := oautherr.Wrap(err)
		h.opts.Metrics.RecordTokenError(grantType, string(oe.Kind))
		if oe.Kind == oautherr.KindServerError {
			log.Printf("[Token] exchange failed grant_type=%s: %v", grantType, oe)
		}
		return nil, oe
	}

	h.opts.Metrics.RecordTokenIssued(grantType, time.Since(start))
	return resp, nil
}

func (h *TokenHandler) handle(ctx context.Context, req *models.Request) (*Response, error) {
	if req == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `request`")
	}
	if req.Method != http.MethodPost {
		return nil, oautherr.InvalidRequest("Invalid request: method must be POST")
	}
	if !req.IsFormEncoded() {
		return nil, oautherr.InvalidRequest(
			"Invalid request: content must be application/x-www-form-urlencoded")
	}

	client, err := h.getClient(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := h.handleGrantType(ctx, req, client)
	if err != nil {
		return nil, err
	}

	model, err := token.NewModel(data, h.opts.AllowExtendedTokenAttributes)
	if err != nil {
		return nil, err
	}
	body, err := token.NewResponse(model)
	if err != nil {
		return nil, err
	}

	return newJSONResponse(http.StatusOK, body), nil
}

// clientCredentials is one extracted client_id/client_secret pair plus where
// it came from, which decides the failure status (RFC 6749 §5.2).
type clientCredentials struct {
	clientID     string
	clientSecret string
	fromHeader   bool
}

// getClientCredentials prefers explicit body parameters, falls back to HTTP
// Basic authentication, and finally accepts a bare client_id when the grant
// does not require client authentication.
func (h *TokenHandler) getClientCredentials(req *models.Request) (*clientCredentials, error) {
	grantType := req.BodyParam("grant_type")

	if id := req.BodyParam("client_id"); id != "" && req.BodyParam("client_secret") != "" {
		return &clientCredentials{clientID: id, clientSecret: req.BodyParam("client_secret")}, nil
	}

	if auth := req.Headers.Get("Authorization"); strings.HasPrefix(auth, "Basic ") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			return nil, oautherr.InvalidClient("Invalid client: malformed authorization header").
				WithStatus(http.StatusUnauthorized)
		}
		id, secret, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return nil, oautherr.InvalidClient("Invalid client: malformed authorization header").
				WithStatus(http.StatusUnauthorized)
		}
		return &clientCredentials{clientID: id, clientSecret: secret, fromHeader: true}, nil
	}

	if !h.isClientAuthenticationRequired(grantType) {
		if id := req.BodyParam("client_id"); id != "" {
			return &clientCredentials{clientID: id}, nil
		}
	}

	return nil, oautherr.InvalidClient("Invalid client: cannot read client credentials")
}

// isClientAuthenticationRequired consults the per-grant override map; a
// grant absent from the map requires a client secret.
func (h *TokenHandler) isClientAuthenticationRequired(grantType string) bool {
	if required, ok := h.opts.RequireClientAuthentication[grantType]; ok {
		return required
	}
	return true
}

func (h *TokenHandler) getClient(ctx context.Context, req *models.Request) (*models.Client, error) {
	credentials, err := h.getClientCredentials(req)
	if err != nil {
		return nil, err
	}

	if credentials.clientID == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `client_id`")
	}
	grantType := req.BodyParam("grant_type")
	if h.isClientAuthenticationRequired(grantType) && credentials.clientSecret == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `client_secret`")
	}
	if !validate.VSChar(credentials.clientID) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `client_id`")
	}
	if credentials.clientSecret != "" && !validate.VSChar(credentials.clientSecret) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `client_secret`")
	}

	client, err := h.opts.Model.GetClient(ctx, credentials.clientID, credentials.clientSecret)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if client == nil {
		invalidClient := oautherr.InvalidClient("Invalid client: client is invalid")
		if credentials.fromHeader {
			// The client attempted header authentication, so the failure
			// must answer 401 with a challenge (RFC 6749 §5.2).
			invalidClient.WithStatus(http.StatusUnauthorized)
		}
		return nil, invalidClient
	}
	if len(client.Grants) == 0 {
		return nil, oautherr.ServerError("Server error: missing client `grants`", nil)
	}
	return client, nil
}

func (h *TokenHandler) handleGrantType(
	ctx context.Context,
	req *models.Request,
	client *models.Client,
) (*models.Token, error) {
	grantType := req.BodyParam("grant_type")
	if grantType == "" {
		return nil, oautherr.InvalidRequest("Missing parameter: `grant_type`")
	}
	if !validate.NChar(grantType) && !validate.AbsoluteURI(grantType) {
		return nil, oautherr.InvalidRequest("Invalid parameter: `grant_type`")
	}

	ctor, ok := h.grantTypes[grantType]
	if !ok {
		return nil, oautherr.UnsupportedGrantType("Unsupported grant type: `grant_type` is invalid")
	}
	if !client.AllowsGrant(grantType) {
		return nil, oautherr.UnauthorizedClient("Unauthorized client: `grant_type` is invalid")
	}

	cfg := grants.Config{
		AccessTokenLifetime:  h.accessTokenLifetime(client),
		RefreshTokenLifetime: h.refreshTokenLifetime(client),
		IssueNewRefreshToken: *h.opts.AlwaysIssueNewRefreshToken,
	}

	grant, err := ctor(cfg, h.opts.Model)
	if err != nil {
		return nil, err
	}
	return grant.Handle(ctx, req, client)
}

// accessTokenLifetime applies the client-level override when present.
func (h *TokenHandler) accessTokenLifetime(client *models.Client) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return client.AccessTokenLifetime
	}
	return h.opts.AccessTokenLifetime
}

func (h *TokenHandler) refreshTokenLifetime(client *models.Client) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return client.RefreshTokenLifetime
	}
	return h.opts.RefreshTokenLifetime
}
