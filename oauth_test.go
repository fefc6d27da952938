package oauth_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oauth "github.com/cjjenkinson/ephemeral-oauth"
	"github.com/cjjenkinson/ephemeral-oauth/handlers"
	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
	"github.com/cjjenkinson/ephemeral-oauth/store"
)

func setupServer(t *testing.T, opts oauth.Options) (*oauth.Server, *store.Store) {
	t.Helper()

	st, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	ctx := context.Background()
	owner, err := st.CreateUser(ctx, "alice", "s3cret", "")
	require.NoError(t, err)
	require.NoError(t, st.CreateClient(ctx, &store.ClientRecord{
		ClientID:     "client-1",
		Grants:       "authorization_code password refresh_token client_credentials",
		RedirectURIs: "https://app.example.com/cb",
		OwnerUserID:  owner.ID,
	}, "secret-1"))

	opts.Model = st
	server, err := oauth.New(opts)
	require.NoError(t, err)
	return server, st
}

func formRequest(body map[string]string) *models.Request {
	return &models.Request{
		Method: http.MethodPost,
		Headers: http.Header{
			"Content-Type": []string{"application/x-www-form-urlencoded"},
		},
		Query: map[string]string{},
		Body:  body,
	}
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := oauth.New(oauth.Options{})
	require.Error(t, err)

	var oe *oautherr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, oautherr.KindInvalidArgument, oe.Kind)
}

func TestServer_PasswordAndRefreshRoundTrip(t *testing.T) {
	server, _ := setupServer(t, oauth.Options{})
	ctx := context.Background()

	resp, err := server.Token(ctx, formRequest(map[string]string{
		"grant_type":    "password",
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"username":      "alice",
		"password":      "s3cret",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	accessToken, _ := resp.Body["access_token"].(string)
	refreshToken, _ := resp.Body["refresh_token"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	assert.Equal(t, "Bearer", resp.Body["token_type"])

	// The issued access token authenticates.
	tok, err := server.AuthenticateToken(ctx, accessToken)
	require.NoError(t, err)
	assert.Equal(t, accessToken, tok.AccessToken)

	// Rotation: the refresh exchange retires the old refresh token.
	resp, err = server.Token(ctx, formRequest(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"refresh_token": refreshToken,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated, _ := resp.Body["refresh_token"].(string)
	require.NotEmpty(t, rotated)
	assert.NotEqual(t, refreshToken, rotated)

	_, err = server.Token(ctx, formRequest(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"refresh_token": refreshToken,
	}))
	require.Error(t, err)
	var oe *oautherr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, oautherr.KindInvalidGrant, oe.Kind)
}

func TestServer_AuthorizationCodeRoundTrip(t *testing.T) {
	var st *store.Store
	server, created := setupServer(t, oauth.Options{
		Authorize: handlers.AuthorizeOptions{
			Authenticator: func(ctx context.Context, req *models.Request) (models.User, error) {
				return st.GetUser(ctx, "alice", "s3cret")
			},
		},
	})
	st = created
	ctx := context.Background()

	resp, err := server.Authorize(ctx, &models.Request{
		Method:  http.MethodGet,
		Headers: http.Header{},
		Query: map[string]string{
			"response_type": "code",
			"client_id":     "client-1",
			"state":         "xyz",
		},
		Body: map[string]string{},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Headers["Location"])
	require.NoError(t, err)
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "xyz", location.Query().Get("state"))

	// The minted code exchanges exactly once, bound to its redirect URI.
	resp, err = server.Token(ctx, formRequest(map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"code":          code,
		"redirect_uri":  "https://app.example.com/cb",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Body["access_token"])

	_, err = server.Token(ctx, formRequest(map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     "client-1",
		"client_secret": "secret-1",
		"code":          code,
		"redirect_uri":  "https://app.example.com/cb",
	}))
	require.Error(t, err)
	var oe *oautherr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, oautherr.KindInvalidGrant, oe.Kind)
}

func TestServer_ClientCredentials(t *testing.T) {
	server, _ := setupServer(t, oauth.Options{})

	resp, err := server.Token(context.Background(), formRequest(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "client-1",
		"client_secret": "secret-1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Body["access_token"])
	assert.NotContains(t, resp.Body, "refresh_token")
}
