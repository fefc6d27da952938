package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cjjenkinson/ephemeral-oauth/cache"
	"github.com/cjjenkinson/ephemeral-oauth/models"
)

// Store is a GORM-backed reference implementation of models.Model. Secrets
// and passwords are bcrypt-hashed; tokens and codes are stored as SHA256
// hashes. It also implements the optional ScopeValidator capability.
type Store struct {
	db *gorm.DB

	// tokenCache short-circuits access-token lookups. Revocation staleness
	// is bounded by cacheTTL.
	tokenCache cache.Cache[TokenRecord]
	cacheTTL   time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithTokenCache caches access-token lookups with the given TTL.
func WithTokenCache(c cache.Cache[TokenRecord], ttl time.Duration) Option {
	return func(s *Store) {
		s.tokenCache = c
		s.cacheTTL = ttl
	}
}

// New opens the database for the given driver name and DSN and migrates the
// schema.
func New(driver, dsn string, opts ...Option) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&UserRecord{},
		&ClientRecord{},
		&CodeRecord{},
		&TokenRecord{},
	); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Compile-time contract checks.
var (
	_ models.Model          = (*Store)(nil)
	_ models.ScopeValidator = (*Store)(nil)
)

// GetClient resolves a client by id. A non-empty secret must match the
// stored bcrypt hash; a mismatch reads as not-found so callers cannot
// distinguish a bad secret from an unknown client.
func (s *Store) GetClient(ctx context.Context, id, secret string) (*models.Client, error) {
	record, err := s.clientRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if secret != "" {
		if record.SecretHash == "" {
			return nil, nil
		}
		if bcrypt.CompareHashAndPassword([]byte(record.SecretHash), []byte(secret)) != nil {
			return nil, nil
		}
	}
	return toModelClient(record), nil
}

// GetUser resolves a resource owner by credentials for the password grant.
func (s *Store) GetUser(ctx context.Context, username, password string) (models.User, error) {
	var record UserRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return &record, nil
}

// GetUserFromClient resolves the owner behind a client for the
// client-credentials grant.
func (s *Store) GetUserFromClient(ctx context.Context, client *models.Client) (models.User, error) {
	record, err := s.clientRecord(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.OwnerUserID == "" {
		return nil, nil
	}
	var user UserRecord
	err = s.db.WithContext(ctx).Where("id = ?", record.OwnerUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAuthorizationCode resolves an unconsumed code by its plain value.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var record CodeRecord
	err := s.db.WithContext(ctx).
		Where("code_hash = ? AND used_at IS NULL", hashToken(code)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	client, err := s.GetClient(ctx, record.ClientID, "")
	if err != nil {
		return nil, err
	}
	user, err := s.userByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	return &models.AuthorizationCode{
		Code:        code,
		ExpiresAt:   record.ExpiresAt,
		RedirectURI: record.RedirectURI,
		Scope:       record.Scope,
		Client:      client,
		User:        user,
	}, nil
}

// SaveAuthorizationCode persists a freshly minted code, hashed.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user models.User) error {
	record := &CodeRecord{
		CodeHash:    hashToken(code.Code),
		ExpiresAt:   code.ExpiresAt,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		ClientID:    client.ID,
		UserID:      userID(user),
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// RevokeAuthorizationCode consumes a code atomically. Of two concurrent
// exchanges, the conditional update lets exactly one observe ok == true.
func (s *Store) RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&CodeRecord{}).
		Where("code_hash = ? AND used_at IS NULL", hashToken(code.Code)).
		Update("used_at", &now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetAccessToken resolves an access token by its plain value, consulting the
// cache first when one is configured. Unknown tokens surface ErrRecordNotFound
// from the lookup and are never cached.
func (s *Store) GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	hash := hashToken(accessToken)
	lookup := func(ctx context.Context, _ string) (TokenRecord, error) {
		var record TokenRecord
		err := s.db.WithContext(ctx).
			Where("access_token_hash = ? AND revoked_at IS NULL", hash).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return record, ErrRecordNotFound
		}
		return record, err
	}

	var record TokenRecord
	var err error
	if s.tokenCache != nil {
		record, err = cache.GetWithFetch(ctx, s.tokenCache, "at:"+hash, s.cacheTTL, lookup)
	} else {
		record, err = lookup(ctx, "")
	}
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toModelToken(ctx, &record, accessToken, "")
}

// GetRefreshToken resolves a refresh token by its plain value. Never cached;
// rotation must always see current state.
func (s *Store) GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	var record TokenRecord
	err := s.db.WithContext(ctx).
		Where("refresh_token_hash = ? AND revoked_at IS NULL", hashToken(refreshToken)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toModelToken(ctx, &record, "", refreshToken)
}

// SaveToken persists an issued token pair, hashed, and echoes the input
// record back as the persisted result.
func (s *Store) SaveToken(ctx context.Context, token *models.Token, client *models.Client, user models.User) (*models.Token, error) {
	record := &TokenRecord{
		AccessTokenHash: hashToken(token.AccessToken),
		Scope:           token.Scope,
		ClientID:        client.ID,
		UserID:          userID(user),
	}
	if token.AccessTokenExpiresAt != nil {
		record.AccessTokenExpiresAt = *token.AccessTokenExpiresAt
	}
	if token.RefreshToken != "" {
		record.RefreshTokenHash = hashToken(token.RefreshToken)
		record.RefreshTokenExpiresAt = token.RefreshTokenExpiresAt
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	saved := *token
	saved.Client = client
	saved.User = user
	return &saved, nil
}

// RevokeToken invalidates the record holding the given refresh token, again
// with a conditional update so concurrent rotations race safely.
func (s *Store) RevokeToken(ctx context.Context, token *models.Token) (bool, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&TokenRecord{}).
		Where("refresh_token_hash = ? AND revoked_at IS NULL", hashToken(token.RefreshToken)).
		Update("revoked_at", &now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ValidateScope narrows the requested scope to what both the client and the
// user allow. An empty allowance list means unrestricted. Returning ""
// rejects the request.
func (s *Store) ValidateScope(ctx context.Context, user models.User, client *models.Client, scope string) (string, error) {
	requested := splitList(scope)
	if len(requested) == 0 {
		return scope, nil
	}

	record, err := s.clientRecord(ctx, client.ID)
	if err != nil {
		return "", err
	}
	allowed := requested
	if record != nil && record.Scope != "" {
		allowed = intersect(allowed, splitList(record.Scope))
	}
	if u, ok := user.(*UserRecord); ok && u.Scope != "" {
		allowed = intersect(allowed, splitList(u.Scope))
	}
	return joinList(allowed), nil
}

// CreateUser registers a resource owner with a bcrypt-hashed password. A
// taken username fails with ErrUsernameConflict.
func (s *Store) CreateUser(ctx context.Context, username, password, scope string) (*UserRecord, error) {
	var existing UserRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	record := &UserRecord{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Scope:        scope,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// CreateClient registers a client. The plain secret is only known to the
// caller; pass "" for a public client. A taken client id fails with
// ErrClientConflict.
func (s *Store) CreateClient(ctx context.Context, record *ClientRecord, secret string) error {
	var existing ClientRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", record.ClientID).First(&existing).Error
	if err == nil {
		return ErrClientConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		record.SecretHash = string(hash)
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// DeleteExpiredTokens removes tokens whose access and refresh lifetimes have
// both lapsed.
func (s *Store) DeleteExpiredTokens(ctx context.Context) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Where("access_token_expires_at < ? AND (refresh_token_expires_at IS NULL OR refresh_token_expires_at < ?)", now, now).
		Delete(&TokenRecord{}).Error
}

// DeleteExpiredAuthorizationCodes removes lapsed codes.
func (s *Store) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&CodeRecord{}).Error
}

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) clientRecord(ctx context.Context, clientID string) (*ClientRecord, error) {
	var record ClientRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) userByID(ctx context.Context, id string) (models.User, error) {
	var record UserRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// toModelToken rebuilds the wire-facing token record. Hashes never leave the
// store; the plain values come from the caller's lookup key.
func (s *Store) toModelToken(ctx context.Context, record *TokenRecord, accessToken, refreshToken string) (*models.Token, error) {
	client, err := s.GetClient(ctx, record.ClientID, "")
	if err != nil {
		return nil, err
	}
	user, err := s.userByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	token := &models.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scope:        record.Scope,
		Client:       client,
		User:         user,
	}
	if !record.AccessTokenExpiresAt.IsZero() {
		expiresAt := record.AccessTokenExpiresAt
		token.AccessTokenExpiresAt = &expiresAt
	}
	if record.RefreshTokenExpiresAt != nil {
		expiresAt := *record.RefreshTokenExpiresAt
		token.RefreshTokenExpiresAt = &expiresAt
	}
	return token, nil
}

func toModelClient(record *ClientRecord) *models.Client {
	return &models.Client{
		ID:                   record.ClientID,
		Grants:               splitList(record.Grants),
		RedirectURIs:         splitList(record.RedirectURIs),
		AccessTokenLifetime:  time.Duration(record.AccessTokenLifetime) * time.Second,
		RefreshTokenLifetime: time.Duration(record.RefreshTokenLifetime) * time.Second,
	}
}

func userID(user models.User) string {
	switch u := user.(type) {
	case *UserRecord:
		return u.ID
	case interface{ UserID() string }:
		return u.UserID()
	case string:
		return u
	default:
		return ""
	}
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
