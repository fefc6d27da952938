package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cjjenkinson/ephemeral-oauth/adapter"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// Context keys set by RequireToken.
const (
	ContextToken = "oauth_token"
	ContextUser  = "oauth_user"
)

// TokenAuthenticator validates the bearer token on a request.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, req *models.Request) (*models.Token, error)
}

// RequireToken guards a route group behind the bearer-token check. On
// success the resolved token and user land in the gin context under
// ContextToken and ContextUser.
func RequireToken(authn TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := adapter.FromGinContext(c)
		if err != nil {
			abortWithError(c, oautherr.InvalidRequest("Invalid request: malformed body"))
			return
		}

		token, err := authn.Authenticate(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextToken, token)
		c.Set(ContextUser, token.User)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	oe := oautherr.Wrap(err)

	if oe.Status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="Service"`)
	}
	c.AbortWithStatusJSON(oe.Status, gin.H{
		"error":             string(oe.Kind),
		"error_description": oe.Message,
	})
}
