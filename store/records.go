package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// hashToken derives the storage key for an opaque credential. Plain tokens
// and codes are never persisted.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// UserRecord is a resource owner. The password is stored as a bcrypt hash.
type UserRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	// Scope lists the space-separated scopes this user may be granted.
	// Empty means unrestricted.
	Scope string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserRecord) TableName() string {
	return "users"
}

// UserID feeds token generators that derive a subject from the user.
func (u *UserRecord) UserID() string {
	return u.ID
}

// ClientRecord is a registered OAuth client. The secret is stored as a
// bcrypt hash; grants and redirect URIs are space-separated lists.
type ClientRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ClientID   string `gorm:"uniqueIndex;not null"`
	SecretHash string

	Grants       string `gorm:"not null"`
	RedirectURIs string

	// Lifetime overrides in seconds; 0 falls back to the server defaults.
	AccessTokenLifetime  int64
	RefreshTokenLifetime int64

	// OwnerUserID is the user the client-credentials grant acts as.
	OwnerUserID string `gorm:"index"`

	// Scope lists the space-separated scopes this client may request.
	// Empty means unrestricted.
	Scope string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ClientRecord) TableName() string {
	return "clients"
}

// CodeRecord is a single-use authorization code, stored hashed. UsedAt
// doubles as the consumption marker for the conditional revoke update.
type CodeRecord struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	CodeHash string `gorm:"uniqueIndex;not null"`

	ExpiresAt   time.Time
	RedirectURI string
	Scope       string

	ClientID string `gorm:"not null;index"`
	UserID   string `gorm:"not null;index"`

	UsedAt    *time.Time
	CreatedAt time.Time
}

func (CodeRecord) TableName() string {
	return "authorization_codes"
}

// TokenRecord pairs an access token with its optional refresh token, both
// stored hashed. RevokedAt doubles as the rotation marker.
type TokenRecord struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	AccessTokenHash string `gorm:"uniqueIndex;not null"`

	AccessTokenExpiresAt time.Time

	RefreshTokenHash      string `gorm:"index"`
	RefreshTokenExpiresAt *time.Time

	Scope string

	ClientID string `gorm:"not null;index"`
	UserID   string `gorm:"not null;index"`

	RevokedAt *time.Time
	CreatedAt time.Time
}

func (TokenRecord) TableName() string {
	return "tokens"
}

func splitList(s string) []string {
	return strings.Fields(s)
}

func joinList(parts []string) string {
	return strings.Join(parts, " ")
}
