// Package oauth implements an OAuth 2.0 authorization-server core: the
// RFC 6749 grant-type state machines and the RFC 6750 bearer-token check,
// packaged as stateless handlers over an injected storage/identity model.
//
// The package owns no persistence and no transport. The embedding
// application implements models.Model, normalizes inbound requests into
// models.Request (the adapter package covers common transports), and maps
// the returned handlers.Response onto its HTTP layer.
package oauth

import (
	"context"

	"github.com/cjjenkinson/ephemeral-oauth/handlers"
	"github.com/cjjenkinson/ephemeral-oauth/metrics"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// Options configures a Server. Model is required; everything else has a
// sensible default. Sub-options inherit Model and Metrics when left unset.
type Options struct {
	Model   models.Model
	Metrics metrics.Recorder

	Token        handlers.TokenOptions
	Authorize    handlers.AuthorizeOptions
	Authenticate handlers.AuthenticateOptions
}

// Server bundles the three endpoint handlers behind one construction point.
type Server struct {
	token        *handlers.TokenHandler
	authorize    *handlers.AuthorizeHandler
	authenticate *handlers.AuthenticateHandler
}

// New builds a Server. It fails with invalid_argument when no model is
// supplied. Refresh-token rotation defaults to enabled unless the token
// options state otherwise.
func New(opts Options) (*Server, error) {
	if opts.Model == nil {
		return nil, oautherr.InvalidArgument("Missing parameter: `model`")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	if opts.Token.Model == nil {
		opts.Token.Model = opts.Model
	}
	if opts.Token.Metrics == nil {
		opts.Token.Metrics = opts.Metrics
	}
	if opts.Token.AlwaysIssueNewRefreshToken == nil {
		rotate := true
		opts.Token.AlwaysIssueNewRefreshToken = &rotate
	}

	if opts.Authorize.Model == nil {
		opts.Authorize.Model = opts.Model
	}
	if opts.Authorize.Metrics == nil {
		opts.Authorize.Metrics = opts.Metrics
	}

	if opts.Authenticate.Model == nil {
		opts.Authenticate.Model = opts.Model
	}
	if opts.Authenticate.Metrics == nil {
		opts.Authenticate.Metrics = opts.Metrics
	}

	tokenHandler, err := handlers.NewTokenHandler(opts.Token)
	if err != nil {
		return nil, err
	}
	authorizeHandler, err := handlers.NewAuthorizeHandler(opts.Authorize)
	if err != nil {
		return nil, err
	}
	authenticateHandler, err := handlers.NewAuthenticateHandler(opts.Authenticate)
	if err != nil {
		return nil, err
	}

	return &Server{
		token:        tokenHandler,
		authorize:    authorizeHandler,
		authenticate: authenticateHandler,
	}, nil
}

// Token runs a token exchange: client authentication, grant dispatch, token
// issuance, and RFC 6749 response shaping.
func (s *Server) Token(ctx context.Context, req *models.Request) (*handlers.Response, error) {
	return s.token.Handle(ctx, req)
}

// Authorize runs the authorization endpoint and answers with a redirect
// response, success or error-shaped.
func (s *Server) Authorize(ctx context.Context, req *models.Request) (*handlers.Response, error) {
	return s.authorize.Handle(ctx, req)
}

// Authenticate validates a bearer token presented on the request and returns
// the resolved token record.
func (s *Server) Authenticate(ctx context.Context, req *models.Request) (*models.Token, error) {
	return s.authenticate.Handle(ctx, req)
}

// AuthenticateToken validates a raw token string already extracted by the
// caller, e.g. a platform authorizer.
func (s *Server) AuthenticateToken(ctx context.Context, raw string) (*models.Token, error) {
	return s.authenticate.AuthenticateToken(ctx, raw)
}
