package grants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

func refreshFixture(client *models.Client) (*mockModel, *models.Token) {
	expiresAt := time.Now().Add(24 * time.Hour)
	stored := &models.Token{
		AccessToken:           "old-access",
		RefreshToken:          "old-refresh",
		RefreshTokenExpiresAt: &expiresAt,
		Scope:                 "read write",
		Client:                client,
		User:                  "user-1",
	}

	revoked := false
	model := &mockModel{
		getRefreshToken: func(ctx context.Context, raw string) (*models.Token, error) {
			if raw != stored.RefreshToken || revoked {
				return nil, nil
			}
			return stored, nil
		},
		revokeToken: func(ctx context.Context, tok *models.Token) (bool, error) {
			if revoked {
				return false, nil
			}
			revoked = true
			return true, nil
		},
	}
	return model, stored
}

func refreshClient() *models.Client {
	return &models.Client{ID: "client-1", Grants: []string{TypeRefreshToken}}
}

func TestRefreshToken_Rotation(t *testing.T) {
	client := refreshClient()
	model, _ := refreshFixture(client)

	grant, err := NewRefreshToken(testConfig(), model)
	require.NoError(t, err)

	tok, err := grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "old-refresh",
	}), client)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.NotEqual(t, "old-refresh", tok.RefreshToken)
	assert.Equal(t, "read write", tok.Scope)

	// The rotated-away token must no longer resolve.
	_, err = grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "old-refresh",
	}), client)
	assertKind(t, err, oautherr.KindInvalidGrant)
}

func TestRefreshToken_ReuseMode(t *testing.T) {
	client := refreshClient()
	model, stored := refreshFixture(client)

	cfg := testConfig()
	cfg.IssueNewRefreshToken = false
	grant, err := NewRefreshToken(cfg, model)
	require.NoError(t, err)

	tok, err := grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "old-refresh",
	}), client)
	require.NoError(t, err)

	// The presented refresh token is carried forward unchanged, expiry
	// included, and stays valid for further exchanges.
	assert.Equal(t, "old-refresh", tok.RefreshToken)
	assert.Equal(t, stored.RefreshTokenExpiresAt, tok.RefreshTokenExpiresAt)

	again, err := grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "old-refresh",
	}), client)
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", again.RefreshToken)
}

func TestRefreshToken_Expired(t *testing.T) {
	client := refreshClient()
	expiresAt := time.Now().Add(-time.Minute)
	model := &mockModel{
		getRefreshToken: func(ctx context.Context, raw string) (*models.Token, error) {
			return &models.Token{
				RefreshToken:          raw,
				RefreshTokenExpiresAt: &expiresAt,
				Client:                client,
				User:                  "user-1",
			}, nil
		},
	}
	grant, err := NewRefreshToken(testConfig(), model)
	require.NoError(t, err)

	_, err = grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "stale",
	}), client)
	assertKind(t, err, oautherr.KindInvalidGrant)
}

func TestRefreshToken_WrongClient(t *testing.T) {
	owner := refreshClient()
	model, _ := refreshFixture(owner)

	grant, err := NewRefreshToken(testConfig(), model)
	require.NoError(t, err)

	other := &models.Client{ID: "client-2", Grants: []string{TypeRefreshToken}}
	_, err = grant.Handle(context.Background(), formRequest(map[string]string{
		"refresh_token": "old-refresh",
	}), other)
	assertKind(t, err, oautherr.KindInvalidGrant)
}

func TestRefreshToken_MissingParameter(t *testing.T) {
	client := refreshClient()
	model, _ := refreshFixture(client)

	grant, err := NewRefreshToken(testConfig(), model)
	require.NoError(t, err)

	_, err = grant.Handle(context.Background(), formRequest(map[string]string{}), client)
	assertKind(t, err, oautherr.KindInvalidRequest)
}
