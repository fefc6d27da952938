package token

import "github.com/cjjenkinson/ephemeral-oauth/oautherr"

// TypeBearer is the only token_type the core issues (RFC 6750).
const TypeBearer = "Bearer"

// NewResponse shapes a validated token model into the RFC 6749 §5.1 JSON
// body. Optional fields are omitted when absent; custom attributes are
// merged in last and cannot override the fixed fields.
func NewResponse(m *Model) (map[string]any, error) {
	if m == nil || m.AccessToken == "" {
		return nil, oautherr.InvalidArgument("Missing parameter: `accessToken`")
	}

	response := make(map[string]any, 5+len(m.CustomAttributes))
	for k, v := range m.CustomAttributes {
		response[k] = v
	}

	response["access_token"] = m.AccessToken
	response["token_type"] = TypeBearer

	if m.AccessTokenExpiresAt != nil {
		response["expires_in"] = m.AccessTokenLifetime
	}
	if m.RefreshToken != "" {
		response["refresh_token"] = m.RefreshToken
	}
	if m.Scope != "" {
		response["scope"] = m.Scope
	}

	return response, nil
}
