package handlers

import (
	"context"
	"net/http"
	"regexp"

	"github.com/cjjenkinson/ephemeral-oauth/metrics"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// bearerTokenPattern matches "Bearer <token>" (RFC 6750 §2.1).
var bearerTokenPattern = regexp.MustCompile(`^Bearer\s(\S+)$`)

// AuthenticateOptions configures the bearer-token check.
type AuthenticateOptions struct {
	Model   models.Model
	Metrics metrics.Recorder
}

// AuthenticateHandler resolves and validates an access token presented per
// RFC 6750: Authorization header or form-encoded body, never both.
type AuthenticateHandler struct {
	opts AuthenticateOptions
}

// NewAuthenticateHandler validates options.
func NewAuthenticateHandler(opts AuthenticateOptions) (*AuthenticateHandler, error) {
	if opts.Model == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `model`")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	return &AuthenticateHandler{opts: opts}, nil
}

// Handle extracts the bearer token from the request, resolves it via the
// model, and validates expiry. The returned record exposes at minimum the
// bound user.
func (h *AuthenticateHandler) Handle(ctx context.Context, req *models.Request) (*models.Token, error) {
	if req == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `request`")
	}

	raw, err := h.getTokenFromRequest(req)
	if err != nil {
		h.opts.Metrics.RecordTokenValidation("missing")
		return nil, err
	}
	return h.AuthenticateToken(ctx, raw)
}

// AuthenticateToken validates a token already extracted by a platform
// authorizer mechanism, skipping header/body parsing.
func (h *AuthenticateHandler) AuthenticateToken(ctx context.Context, raw string) (*models.Token, error) {
	accessToken, err := h.getAccessToken(ctx, raw)
	if err != nil {
		h.opts.Metrics.RecordTokenValidation("invalid")
		return nil, err
	}
	if err := h.validateAccessToken(accessToken); err != nil {
		h.opts.Metrics.RecordTokenValidation("expired")
		return nil, err
	}
	h.opts.Metrics.RecordTokenValidation("success")
	return accessToken, nil
}

// getTokenFromRequest locates the token. Presenting it in both the header
// and the body is a protocol violation and fails before any model lookup.
func (h *AuthenticateHandler) getTokenFromRequest(req *models.Request) (string, error) {
	headerToken := req.Headers.Get("Authorization")
	bodyToken := req.BodyParam("access_token")

	if headerToken != "" && bodyToken != "" {
		return "", oautherr.InvalidRequest(
			"Invalid request: only one authentication method is allowed")
	}
	if headerToken != "" {
		return bearerToken(headerToken)
	}
	if bodyToken != "" {
		return h.getTokenFromRequestBody(req, bodyToken)
	}
	return "", oautherr.UnauthorizedRequest("Unauthorized request: no authentication given")
}

// bearerToken parses an Authorization header value of the form
// "Bearer <token>".
func bearerToken(header string) (string, error) {
	matches := bearerTokenPattern.FindStringSubmatch(header)
	if matches == nil {
		return "", oautherr.InvalidRequest("Invalid request: malformed authorization header")
	}
	return matches[1], nil
}

// getTokenFromRequestBody enforces the RFC 6750 §2.2 constraints on
// body-borne tokens: never on GET, only form-encoded.
func (h *AuthenticateHandler) getTokenFromRequestBody(req *models.Request, bodyToken string) (string, error) {
	if req.Method == http.MethodGet {
		return "", oautherr.InvalidRequest(
			"Invalid request: token may not be passed in the body when using the GET verb")
	}
	if !req.IsFormEncoded() {
		return "", oautherr.InvalidRequest(
			"Invalid request: content must be application/x-www-form-urlencoded")
	}
	return bodyToken, nil
}

func (h *AuthenticateHandler) getAccessToken(ctx context.Context, raw string) (*models.Token, error) {
	accessToken, err := h.opts.Model.GetAccessToken(ctx, raw)
	if err != nil {
		return nil, oautherr.Wrap(err)
	}
	if accessToken == nil {
		return nil, oautherr.InvalidToken("Invalid token: access token is invalid")
	}
	if accessToken.User == nil {
		return nil, oautherr.ServerError(
			"Server error: `getAccessToken()` did not return a `user` object", nil)
	}
	return accessToken, nil
}

func (h *AuthenticateHandler) validateAccessToken(accessToken *models.Token) error {
	if accessToken.AccessTokenExpiresAt == nil || accessToken.AccessTokenExpiresAt.IsZero() {
		return oautherr.ServerError("Server error: `accessTokenExpiresAt` must be set", nil)
	}
	if accessToken.AccessTokenExpired() {
		return oautherr.InvalidToken("Invalid token: access token has expired")
	}
	return nil
}
