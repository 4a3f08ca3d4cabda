package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// DefaultSessionLifetime applies when Create is given a non-positive lifetime.
const DefaultSessionLifetime = 7 * 24 * time.Hour

// SessionService maps opaque session tokens to users. Only a hash of each
// token is stored.
type SessionService struct {
	clock
	storage *storage.SQLiteRepository
	logger  *log.Logger
}

func NewSessionService(storage *storage.SQLiteRepository, logger *log.Logger) *SessionService {
	return &SessionService{
		storage: storage,
		logger:  componentLogger(logger, log.ComponentSession),
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create starts a session for userID and returns the raw token.
func (s *SessionService) Create(ctx context.Context, userID int64, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	token := uuid.NewString()
	if err := s.storage.CreateSession(ctx, hashToken(token), userID, s.current().Add(lifetime)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.logger.DebugContext(ctx, "Session created", log.FieldUserID, userID)
	return token, nil
}

// Resolve returns the user behind token, or ErrNotFound when the token is
// unknown or expired. An expired session is removed.
func (s *SessionService) Resolve(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrNotFound
	}
	h := hashToken(token)
	user, err := s.storage.SessionUser(ctx, h, s.current())
	if errors.Is(err, core.ErrNotFound) {
		if delErr := s.storage.DeleteSession(ctx, h); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to drop stale session", log.FieldError, delErr)
		}
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("resolve session: %w", err)
	}
	return user, nil
}

func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.storage.DeleteSession(ctx, hashToken(token))
}

// RevokeAll signs userID out of every session, used after a password change.
func (s *SessionService) RevokeAll(ctx context.Context, userID int64) error {
	return s.storage.DeleteUserSessions(ctx, userID)
}

// PurgeExpired deletes sessions past their expiry.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.storage.DeleteExpiredSessions(ctx, s.current())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Purged expired sessions", "count", n)
	}
	return n, nil
}
