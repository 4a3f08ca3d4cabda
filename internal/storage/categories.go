package storage

import (
	"context"
	"fmt"

	"moneywise/internal/core"
)

const categoryColumns = `id, user_id, name, type, color, icon, is_default, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c         core.Category
		typ       string
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Color, &c.Icon, &c.IsDefault, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	c.CreatedAt = parseStamp(createdAt)
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	now := r.stamp()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, color, icon, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, string(c.Type), c.Color, c.Icon, c.IsDefault, now)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = parseStamp(now)
	return c, nil
}

// CreateCategories inserts all of cats in one transaction.
func (r *SQLiteRepository) CreateCategories(ctx context.Context, cats []core.Category) ([]core.Category, error) {
	out := make([]core.Category, 0, len(cats))
	err := r.InTx(ctx, func(tx *SQLiteRepository) error {
		for _, c := range cats {
			created, err := tx.CreateCategory(ctx, c)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListCategories returns the user's categories in creation order.
// An empty typ lists both kinds.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryByID only finds categories owned by userID.
func (r *SQLiteRepository) CategoryByID(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := scanCategory(r.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Category{}, notFound(err, "category")
	}
	return c, nil
}
