package storage

import (
	"context"
	"fmt"
	"time"

	"moneywise/internal/core"
)

// CreateSession stores the hash of a session token for userID.
func (r *SQLiteRepository) CreateSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		tokenHash, userID, r.stamp(), expiresAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionUser resolves an unexpired session to its user.
func (r *SQLiteRepository) SessionUser(ctx context.Context, tokenHash string, now time.Time) (core.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.currency, u.created_at, u.updated_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = ? AND s.expires_at > ?`,
		tokenHash, now.UTC().Format(timestampLayout)))
	if err != nil {
		return core.User{}, notFound(err, "session")
	}
	return u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions signs the user out everywhere.
func (r *SQLiteRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
