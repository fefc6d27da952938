package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjenkinson/ephemeral-oauth/cache"
	"github.com/cjjenkinson/ephemeral-oauth/models"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(DriverSQLite, ":memory:", opts...)
	require.NoError(t, err)
	return s
}

func seedClient(t *testing.T, s *Store, ownerID string) *ClientRecord {
	t.Helper()
	record := &ClientRecord{
		ClientID:     "client-1",
		Grants:       "authorization_code password refresh_token client_credentials",
		RedirectURIs: "https://app.example.com/cb",
		OwnerUserID:  ownerID,
	}
	require.NoError(t, s.CreateClient(context.Background(), record, "secret-1"))
	return record
}

func TestStore_GetClient(t *testing.T) {
	s := setupTestStore(t)
	seedClient(t, s, "")
	ctx := context.Background()

	// Correct secret resolves.
	client, err := s.GetClient(ctx, "client-1", "secret-1")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "client-1", client.ID)
	assert.Contains(t, client.Grants, "password")
	assert.Equal(t, []string{"https://app.example.com/cb"}, client.RedirectURIs)

	// Wrong secret reads as not-found.
	client, err = s.GetClient(ctx, "client-1", "wrong")
	require.NoError(t, err)
	assert.Nil(t, client)

	// Empty secret skips the check (authorize endpoint path).
	client, err = s.GetClient(ctx, "client-1", "")
	require.NoError(t, err)
	assert.NotNil(t, client)

	// Unknown client.
	client, err = s.GetClient(ctx, "nobody", "secret-1")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestStore_GetUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "s3cret", "")
	require.NoError(t, err)

	user, err := s.GetUser(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.(*UserRecord).Username)

	user, err = s.GetUser(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = s.GetUser(ctx, "nobody", "s3cret")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestStore_CreateConflicts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "pw", "")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "alice", "other-pw", "")
	assert.ErrorIs(t, err, ErrUsernameConflict)

	seedClient(t, s, "")
	err = s.CreateClient(ctx, &ClientRecord{ClientID: "client-1"}, "other-secret")
	assert.ErrorIs(t, err, ErrClientConflict)
}

func TestStore_GetUserFromClient(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "svc-owner", "pw", "")
	require.NoError(t, err)
	seedClient(t, s, owner.ID)

	client, err := s.GetClient(ctx, "client-1", "")
	require.NoError(t, err)

	user, err := s.GetUserFromClient(ctx, client)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, owner.ID, user.(*UserRecord).ID)
}

func TestStore_AuthorizationCodeLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "alice", "pw", "")
	require.NoError(t, err)
	seedClient(t, s, "")
	client, err := s.GetClient(ctx, "client-1", "")
	require.NoError(t, err)

	code := &models.AuthorizationCode{
		Code:        "plain-code",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		RedirectURI: "https://app.example.com/cb",
		Scope:       "read",
	}
	require.NoError(t, s.SaveAuthorizationCode(ctx, code, client, owner))

	// Plain code is not persisted.
	var count int64
	s.DB().Model(&CodeRecord{}).Where("code_hash = ?", "plain-code").Count(&count)
	assert.Zero(t, count)

	resolved, err := s.GetAuthorizationCode(ctx, "plain-code")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "plain-code", resolved.Code)
	assert.Equal(t, "read", resolved.Scope)
	require.NotNil(t, resolved.Client)
	assert.Equal(t, "client-1", resolved.Client.ID)
	require.NotNil(t, resolved.User)

	// First revoke consumes, second reports failure.
	ok, err := s.RevokeAuthorizationCode(ctx, resolved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeAuthorizationCode(ctx, resolved)
	require.NoError(t, err)
	assert.False(t, ok)

	// A consumed code no longer resolves.
	resolved, err = s.GetAuthorizationCode(ctx, "plain-code")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestStore_TokenLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "alice", "pw", "")
	require.NoError(t, err)
	seedClient(t, s, "")
	client, err := s.GetClient(ctx, "client-1", "")
	require.NoError(t, err)

	accessExpiresAt := time.Now().Add(time.Hour)
	refreshExpiresAt := time.Now().Add(24 * time.Hour)
	_, err = s.SaveToken(ctx, &models.Token{
		AccessToken:           "plain-access",
		AccessTokenExpiresAt:  &accessExpiresAt,
		RefreshToken:          "plain-refresh",
		RefreshTokenExpiresAt: &refreshExpiresAt,
		Scope:                 "read",
	}, client, owner)
	require.NoError(t, err)

	access, err := s.GetAccessToken(ctx, "plain-access")
	require.NoError(t, err)
	require.NotNil(t, access)
	assert.Equal(t, "plain-access", access.AccessToken)
	require.NotNil(t, access.User)

	refresh, err := s.GetRefreshToken(ctx, "plain-refresh")
	require.NoError(t, err)
	require.NotNil(t, refresh)
	assert.Equal(t, "plain-refresh", refresh.RefreshToken)

	// Revocation by refresh token is single-shot.
	ok, err := s.RevokeToken(ctx, refresh)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeToken(ctx, refresh)
	require.NoError(t, err)
	assert.False(t, ok)

	refresh, err = s.GetRefreshToken(ctx, "plain-refresh")
	require.NoError(t, err)
	assert.Nil(t, refresh)
}

func TestStore_TokenCache(t *testing.T) {
	s := setupTestStore(t, WithTokenCache(cache.NewMemoryCache[TokenRecord](), time.Minute))
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "alice", "pw", "")
	require.NoError(t, err)
	seedClient(t, s, "")
	client, err := s.GetClient(ctx, "client-1", "")
	require.NoError(t, err)

	accessExpiresAt := time.Now().Add(time.Hour)
	_, err = s.SaveToken(ctx, &models.Token{
		AccessToken:          "cached-access",
		AccessTokenExpiresAt: &accessExpiresAt,
	}, client, owner)
	require.NoError(t, err)

	// First lookup warms the cache, second is served from it.
	first, err := s.GetAccessToken(ctx, "cached-access")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.GetAccessToken(ctx, "cached-access")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.AccessToken, second.AccessToken)

	// Unknown tokens read as not-found through the cache path, with no
	// error surfaced.
	missing, err := s.GetAccessToken(ctx, "never-issued")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ValidateScope(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "pw", "read write")
	require.NoError(t, err)

	record := &ClientRecord{
		ClientID: "scoped-client",
		Grants:   "password",
		Scope:    "read admin",
	}
	require.NoError(t, s.CreateClient(ctx, record, "secret"))
	client, err := s.GetClient(ctx, "scoped-client", "")
	require.NoError(t, err)

	// Intersection of request, client allowance and user allowance.
	scope, err := s.ValidateScope(ctx, user, client, "read write admin")
	require.NoError(t, err)
	assert.Equal(t, "read", scope)

	// Nothing left means rejection (empty result).
	scope, err = s.ValidateScope(ctx, user, client, "delete")
	require.NoError(t, err)
	assert.Empty(t, scope)

	// Empty request passes through.
	scope, err = s.ValidateScope(ctx, user, client, "")
	require.NoError(t, err)
	assert.Empty(t, scope)
}

func TestGetDialector_UnknownDriver(t *testing.T) {
	_, err := GetDialector("oracle", "dsn")
	assert.Error(t, err)
}
