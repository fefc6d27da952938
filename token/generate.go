package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomTokenBytes is the entropy of a generated opaque token. 32 bytes
// gives 256 bits, the floor required for unguessable bearer credentials.
const randomTokenBytes = 32

// GenerateRandom returns a cryptographically random opaque token in URL-safe
// base64. Used whenever the model supplies no generator of its own.
func GenerateRandom() (string, error) {
	buf := make([]byte, randomTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
