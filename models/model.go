package models

import "context"

// Model is the storage/identity capability contract implemented by the
// application embedding the core. Each grant type and handler requires only
// the subset it calls; the sub-interfaces below state those subsets so a
// backend can implement exactly what its deployment needs.
//
// Methods return (nil, nil) to signal "not found" for lookups; errors are
// reserved for backend failures, which the core reports as server_error.
type Model interface {
	ClientStore
	UserStore
	CodeStore
	TokenStore
}

// ClientStore resolves clients. secret is empty when the caller does not
// require client authentication (e.g. the authorize endpoint).
type ClientStore interface {
	GetClient(ctx context.Context, id, secret string) (*Client, error)
}

// UserStore resolves resource owners for the password and client-credentials
// grants.
type UserStore interface {
	GetUser(ctx context.Context, username, password string) (User, error)
	GetUserFromClient(ctx context.Context, client *Client) (User, error)
}

// CodeStore persists and consumes authorization codes. RevokeAuthorizationCode
// must be an atomic compare-and-invalidate: of two concurrent exchanges of
// the same code, exactly one may observe ok == true.
type CodeStore interface {
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) error
	RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error)
}

// TokenStore persists and resolves tokens. RevokeToken carries the same
// atomicity requirement as RevokeAuthorizationCode for refresh rotation.
type TokenStore interface {
	GetAccessToken(ctx context.Context, accessToken string) (*Token, error)
	GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error)
	RevokeToken(ctx context.Context, token *Token) (bool, error)
}

// Optional capabilities. The core probes for these once at construction via
// type assertion; a model that does not implement them gets the built-in
// behavior (random opaque tokens, scope passed through unchanged).

// AccessTokenGenerator overrides access-token generation.
type AccessTokenGenerator interface {
	GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// RefreshTokenGenerator overrides refresh-token generation.
type RefreshTokenGenerator interface {
	GenerateRefreshToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// AuthorizationCodeGenerator overrides authorization-code generation.
type AuthorizationCodeGenerator interface {
	GenerateAuthorizationCode(ctx context.Context, client *Client, user User) (string, error)
}

// ScopeValidator lets the model accept, narrow, or reject a requested scope.
// Returning "" rejects the scope.
type ScopeValidator interface {
	ValidateScope(ctx context.Context, user User, client *Client, scope string) (string, error)
}
