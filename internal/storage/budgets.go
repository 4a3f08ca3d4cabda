package storage

import (
	"context"
	"fmt"

	"moneywise/internal/core"
)

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, b.amount_cents, b.month, b.alert_threshold,
	b.created_at, b.updated_at, c.name, c.icon, c.color
FROM budgets b
JOIN categories c ON c.id = b.category_id`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                    core.Budget
		month                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount.Cents, &month, &b.AlertThreshold,
		&createdAt, &updatedAt, &b.CategoryName, &b.CategoryIcon, &b.CategoryColor); err != nil {
		return core.Budget{}, err
	}
	b.Month = parseDay(month)
	b.CreatedAt = parseStamp(createdAt)
	b.UpdatedAt = parseStamp(updatedAt)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := r.stamp()
	b.Month = b.Month.FirstOfMonth()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, month, alert_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, b.Month.String(), b.AlertThreshold, now, now)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = parseStamp(now)
	b.UpdatedAt = b.CreatedAt
	return b, nil
}

func (r *SQLiteRepository) BudgetByID(ctx context.Context, userID, id int64) (core.Budget, error) {
	b, err := scanBudget(r.q.QueryRowContext(ctx, budgetSelect+` WHERE b.id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		return core.Budget{}, notFound(err, "budget")
	}
	return b, nil
}

// ListBudgets returns the user's budgets for the month containing month.
// A zero month lists every budget.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, month core.Date) ([]core.Budget, error) {
	query := budgetSelect + ` WHERE b.user_id = ?`
	args := []any{userID}
	if !month.IsZero() {
		query += ` AND b.month = ?`
		args = append(args, month.FirstOfMonth().String())
	}
	query += ` ORDER BY b.month DESC, c.name COLLATE NOCASE, b.id`
	return r.queryBudgets(ctx, query, args...)
}

// BudgetsForCategory returns the budgets tracking categoryID in month.
func (r *SQLiteRepository) BudgetsForCategory(ctx context.Context, userID, categoryID int64, month core.Date) ([]core.Budget, error) {
	return r.queryBudgets(ctx,
		budgetSelect+` WHERE b.user_id = ? AND b.category_id = ? AND b.month = ? ORDER BY b.id`,
		userID, categoryID, month.FirstOfMonth().String())
}

func (r *SQLiteRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affectedOrNotFound(res, "budget")
}
