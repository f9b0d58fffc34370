package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/licenca/internal/model"
	"gorm.io/gorm"
)

var (
	// ErrRefreshNotFound is returned for an unknown refresh token.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshRevoked is returned for a token that was rotated or logged out.
	ErrRefreshRevoked = errors.New("refresh token has been revoked")
	// ErrRefreshExpired is returned for a token past its expiry.
	ErrRefreshExpired = errors.New("refresh token has expired")
)

// RefreshStore manages refresh token persistence via GORM. Only the SHA-256
// hash of a token is stored.
type RefreshStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewRefreshStore creates a RefreshStore whose tokens live for ttl.
func NewRefreshStore(db *gorm.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{db: db, ttl: ttl, now: time.Now}
}

// IssueRefreshToken generates a secure random token, stores its hash,
// and returns the plaintext token to the caller.
func (s *RefreshStore) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := s.create(s.db.WithContext(ctx), userID)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	return raw, nil
}

// RotateRefreshToken revokes rawToken and issues a replacement in one
// transaction. It returns the new token and the owning user ID.
func (s *RefreshStore) RotateRefreshToken(ctx context.Context, rawToken string) (token string, userID string, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt model.RefreshToken
		if err := tx.Where("token_hash = ?", hashToken(rawToken)).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshNotFound
			}
			return err
		}
		if rt.RevokedAt != nil {
			return ErrRefreshRevoked
		}
		now := s.now()
		if now.After(rt.ExpiresAt) {
			return ErrRefreshExpired
		}

		if err := tx.Model(&rt).Update("revoked_at", now).Error; err != nil {
			return fmt.Errorf("revoke old refresh token: %w", err)
		}
		raw, err := s.create(tx, rt.UserID)
		if err != nil {
			return err
		}
		token, userID = raw, rt.UserID
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return token, userID, nil
}

// RevokeRefreshToken marks the given token as revoked.
func (s *RefreshStore) RevokeRefreshToken(ctx context.Context, rawToken string) error {
	return s.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(rawToken)).
		Update("revoked_at", s.now()).Error
}

func (s *RefreshStore) create(tx *gorm.DB, userID string) (string, error) {
	raw, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	rt := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := tx.Create(rt).Error; err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
