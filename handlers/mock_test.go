package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjenkinson/ephemeral-oauth/models"
	"github.com/cjjenkinson/ephemeral-oauth/oautherr"
)

// mockModel implements models.Model with overridable function fields. Unset
// lookups report not-found.
type mockModel struct {
	getClient               func(ctx context.Context, id, secret string) (*models.Client, error)
	getUser                 func(ctx context.Context, username, password string) (models.User, error)
	getUserFromClient       func(ctx context.Context, client *models.Client) (models.User, error)
	getAuthorizationCode    func(ctx context.Context, code string) (*models.AuthorizationCode, error)
	saveAuthorizationCode   func(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user models.User) error
	revokeAuthorizationCode func(ctx context.Context, code *models.AuthorizationCode) (bool, error)
	getAccessToken          func(ctx context.Context, accessToken string) (*models.Token, error)
	getRefreshToken         func(ctx context.Context, refreshToken string) (*models.Token, error)
	saveToken               func(ctx context.Context, token *models.Token, client *models.Client, user models.User) (*models.Token, error)
	revokeToken             func(ctx context.Context, token *models.Token) (bool, error)
}

func (m *mockModel) GetClient(ctx context.Context, id, secret string) (*models.Client, error) {
	if m.getClient == nil {
		return nil, nil
	}
	return m.getClient(ctx, id, secret)
}

func (m *mockModel) GetUser(ctx context.Context, username, password string) (models.User, error) {
	if m.getUser == nil {
		return nil, nil
	}
	return m.getUser(ctx, username, password)
}

func (m *mockModel) GetUserFromClient(ctx context.Context, client *models.Client) (models.User, error) {
	if m.getUserFromClient == nil {
		return nil, nil
	}
	return m.getUserFromClient(ctx, client)
}

func (m *mockModel) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if m.getAuthorizationCode == nil {
		return nil, nil
	}
	return m.getAuthorizationCode(ctx, code)
}

func (m *mockModel) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user models.User) error {
	if m.saveAuthorizationCode == nil {
		return nil
	}
	return m.saveAuthorizationCode(ctx, code, client, user)
}

func (m *mockModel) RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error) {
	if m.revokeAuthorizationCode == nil {
		return true, nil
	}
	return m.revokeAuthorizationCode(ctx, code)
}

func (m *mockModel) GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	if m.getAccessToken == nil {
		return nil, nil
	}
	return m.getAccessToken(ctx, accessToken)
}

func (m *mockModel) GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	if m.getRefreshToken == nil {
		return nil, nil
	}
	return m.getRefreshToken(ctx, refreshToken)
}

func (m *mockModel) SaveToken(ctx context.Context, token *models.Token, client *models.Client, user models.User) (*models.Token, error) {
	if m.saveToken == nil {
		saved := *token
		saved.Client = client
		saved.User = user
		return &saved, nil
	}
	return m.saveToken(ctx, token, client, user)
}

func (m *mockModel) RevokeToken(ctx context.Context, token *models.Token) (bool, error) {
	if m.revokeToken == nil {
		return true, nil
	}
	return m.revokeToken(ctx, token)
}

func formRequest(body map[string]string) *models.Request {
	return &models.Request{
		Headers: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Method:  http.MethodPost,
		Query:   map[string]string{},
		Body:    body,
	}
}

// assertKind fails unless err is a taxonomy error of the given kind.
func assertKind(t *testing.T, err error, kind oautherr.Kind) {
	t.Helper()
	var oe *oautherr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, kind, oe.Kind)
}

func boolPtr(b bool) *bool {
	return &b
}
