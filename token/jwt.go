package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cjjenkinson/ephemeral-oauth/models"
)

// JWTGenerator is a drop-in model capability that mints HS256-signed JWTs
// instead of random opaque strings. A model embeds it (or forwards to it) to
// satisfy the AccessTokenGenerator / RefreshTokenGenerator capabilities.
type JWTGenerator struct {
	Secret   []byte
	Issuer   string
	Lifetime time.Duration
}

// NewJWTGenerator creates a generator signing with secret. Lifetime only
// drives the embedded exp claim; authoritative expiry still comes from the
// token record the grant type builds.
func NewJWTGenerator(secret []byte, issuer string, lifetime time.Duration) *JWTGenerator {
	return &JWTGenerator{Secret: secret, Issuer: issuer, Lifetime: lifetime}
}

var (
	_ models.AccessTokenGenerator  = (*JWTGenerator)(nil)
	_ models.RefreshTokenGenerator = (*JWTGenerator)(nil)
)

func (g *JWTGenerator) generate(client *models.Client, user models.User, scope, tokenUse string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"client_id": client.ID,
		"scope":     scope,
		"use":       tokenUse,
		"iat":       now.Unix(),
		"exp":       now.Add(g.Lifetime).Unix(),
		"jti":       uuid.New().String(),
	}
	if g.Issuer != "" {
		claims["iss"] = g.Issuer
	}
	if sub, ok := subject(user); ok {
		claims["sub"] = sub
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GenerateAccessToken implements models.AccessTokenGenerator.
func (g *JWTGenerator) GenerateAccessToken(
	_ context.Context,
	client *models.Client,
	user models.User,
	scope string,
) (string, error) {
	return g.generate(client, user, scope, "access")
}

// GenerateRefreshToken implements models.RefreshTokenGenerator.
func (g *JWTGenerator) GenerateRefreshToken(
	_ context.Context,
	client *models.Client,
	user models.User,
	scope string,
) (string, error) {
	return g.generate(client, user, scope, "refresh")
}

// subject extracts a stable string identity from the opaque user value when
// one is available. The core never requires this; it only enriches claims.
func subject(user models.User) (string, bool) {
	switch u := user.(type) {
	case nil:
		return "", false
	case string:
		return u, true
	case fmt.Stringer:
		return u.String(), true
	case interface{ UserID() string }:
		return u.UserID(), true
	default:
		return "", false
	}
}
