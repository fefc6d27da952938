package grants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

func TestClientCredentials_Exchange(t *testing.T) {
	client := &models.Client{ID: "svc-1", Grants: []string{TypeClientCredentials}}
	model := &mockModel{
		getUserFromClient: func(ctx context.Context, c *models.Client) (models.User, error) {
			return "owner-of-" + c.ID, nil
		},
	}
	grant, err := NewClientCredentials(testConfig(), model)
	require.NoError(t, err)

	tok, err := grant.Handle(context.Background(), formRequest(map[string]string{}), client)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "owner-of-svc-1", tok.User)

	// No refresh token for this grant.
	assert.Empty(t, tok.RefreshToken)
	assert.Nil(t, tok.RefreshTokenExpiresAt)
}

func TestClientCredentials_NoBoundUser(t *testing.T) {
	client := &models.Client{ID: "svc-1", Grants: []string{TypeClientCredentials}}
	grant, err := NewClientCredentials(testConfig(), &mockModel{})
	require.NoError(t, err)

	_, err = grant.Handle(context.Background(), formRequest(map[string]string{}), client)
	assertKind(t, err, oautherr.KindInvalidGrant)
}

func TestClientCredentials_CustomGenerator(t *testing.T) {
	client := &models.Client{ID: "svc-1", Grants: []string{TypeClientCredentials}}
	model := &generatorModel{
		mockModel: mockModel{
			getUserFromClient: func(ctx context.Context, c *models.Client) (models.User, error) {
				return "owner", nil
			},
		},
		generateAccessToken: func(ctx context.Context, c *models.Client, user models.User, scope string) (string, error) {
			return "custom-access-token", nil
		},
		generateRefreshToken: func(ctx context.Context, c *models.Client, user models.User, scope string) (string, error) {
			return "custom-refresh-token", nil
		},
	}
	grant, err := NewClientCredentials(testConfig(), model)
	require.NoError(t, err)

	tok, err := grant.Handle(context.Background(), formRequest(map[string]string{}), client)
	require.NoError(t, err)
	assert.Equal(t, "custom-access-token", tok.AccessToken)
}

func TestNewBase_MissingConfig(t *testing.T) {
	_, err := NewBase(Config{}, &mockModel{})
	assertKind(t, err, oautherr.KindInvalidArgument)

	_, err = NewBase(testConfig(), nil)
	assertKind(t, err, oautherr.KindInvalidArgument)
}
