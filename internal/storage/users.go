package storage

import (
	"context"
	"fmt"
	"strings"

	"moneywise/internal/core"
)

const userColumns = `id, username, email, password_hash, currency, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u                    core.User
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Currency, &createdAt, &updatedAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = parseStamp(createdAt)
	u.UpdatedAt = parseStamp(updatedAt)
	return u, nil
}

// CreateUser inserts u and returns it with its assigned ID. Unique violations
// on username or email map to the matching core error.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := r.stamp()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Currency, now, now)
	if err != nil {
		return core.User{}, mapUserConstraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = parseStamp(now)
	u.UpdatedAt = u.CreatedAt
	return u, nil
}

func mapUserConstraint(err error) error {
	switch {
	case isUniqueViolation(err, "users.username"):
		return core.ErrDuplicateUsername
	case isUniqueViolation(err, "users.email"):
		return core.ErrDuplicateEmail
	default:
		return fmt.Errorf("write user: %w", err)
	}
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

// UserByEmail matches case-insensitively since emails are stored lower-cased.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

// UsernameTaken and EmailTaken back the pre-insert duplicate checks.
func (r *SQLiteRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
}

func (r *SQLiteRepository) EmailTaken(ctx context.Context, email string, exceptUserID int64) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND id != ?)`, email, exceptUserID)
}

func (r *SQLiteRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return found, nil
}

func (r *SQLiteRepository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, r.stamp(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affectedOrNotFound(res, "user")
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID int64, email, currency string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, currency = ?, updated_at = ? WHERE id = ?`,
		email, currency, r.stamp(), userID)
	if err != nil {
		return mapUserConstraint(err)
	}
	return affectedOrNotFound(res, "user")
}

// DeleteUser removes the user; categories, transactions, budgets and sessions
// go with it through ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, userID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOrNotFound(res, "user")
}

// CountUsers backs the admin user count.
func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
