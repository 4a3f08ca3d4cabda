package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"moneywise/internal/core"
)

const transactionSelect = `SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.type, t.description,
	t.date, t.recurring_frequency, t.recurring_parent_id, t.created_at, t.updated_at,
	c.name, c.icon, c.color
FROM transactions t
JOIN categories c ON c.id = t.category_id`

// newest first; created_at and id break ties between same-day entries
const transactionOrder = ` ORDER BY t.date DESC, t.created_at DESC, t.id DESC`

// RecurringTemplate is a recurring transaction together with the date of its
// most recent occurrence, which is the template's own date until one exists.
type RecurringTemplate struct {
	core.Transaction
	LastOccurrence core.Date
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ, date, freq      string
		parent               sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Amount.Cents, &typ, &t.Description,
		&date, &freq, &parent, &createdAt, &updatedAt,
		&t.CategoryName, &t.CategoryIcon, &t.CategoryColor); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = parseDay(date)
	t.Frequency = core.Frequency(freq)
	if parent.Valid {
		t.ParentID = parent.Int64
	}
	t.CreatedAt = parseStamp(createdAt)
	t.UpdatedAt = parseStamp(updatedAt)
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := r.stamp()
	if t.Frequency == "" {
		t.Frequency = core.None
	}
	var parent any
	if t.ParentID != 0 {
		parent = t.ParentID
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, type, description, date,
			recurring_frequency, recurring_parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount.Cents, string(t.Type), t.Description, t.Date.String(),
		string(t.Frequency), parent, now, now)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = parseStamp(now)
	t.UpdatedAt = t.CreatedAt
	return t, nil
}

// TransactionByID only finds transactions owned by userID.
func (r *SQLiteRepository) TransactionByID(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRowContext(ctx,
		transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOrNotFound(res, "transaction")
}

// whereClause renders the shared user/type/category/period predicates.
func whereClause(userID int64, f core.TransactionFilter) (string, []any) {
	conds := []string{"t.user_id = ?"}
	args := []any{userID}
	if f.Type != "" {
		conds = append(conds, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.CategoryID != 0 {
		conds = append(conds, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.Period.IsAllTime() {
		start, end := f.Period.Bounds()
		conds = append(conds, "t.date >= ?", "t.date < ?")
		args = append(args, start.String(), end.String())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := whereClause(userID, f)
	query := transactionSelect + where + transactionOrder
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumTransactions totals the amounts matching f. Limit is ignored.
func (r *SQLiteRepository) SumTransactions(ctx context.Context, userID int64, f core.TransactionFilter) (core.Money, error) {
	where, args := whereClause(userID, f)
	var total int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.amount_cents), 0) FROM transactions t`+where, args...).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// CategoryTotals groups the matching transactions by category, largest total
// first and by name among equal totals.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.CategoryTotal, error) {
	where, args := whereClause(userID, f)
	rows, err := r.q.QueryContext(ctx,
		`SELECT c.id, c.name, c.icon, c.color, SUM(t.amount_cents) AS total
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id`+where+`
		 GROUP BY c.id, c.name, c.icon, c.color
		 ORDER BY total DESC, c.name COLLATE NOCASE, c.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Icon, &ct.Color, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// MonthlyTotals returns per-month income and expense sums for dates in
// [start, end). Months without activity are absent from the map.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64, start, end core.Date) (map[core.Period]core.TrendPoint, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT CAST(substr(date, 1, 4) AS INTEGER), CAST(substr(date, 6, 2) AS INTEGER), type, SUM(amount_cents)
		 FROM transactions
		 WHERE user_id = ? AND date >= ? AND date < ?
		 GROUP BY substr(date, 1, 7), type`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	out := make(map[core.Period]core.TrendPoint)
	for rows.Next() {
		var (
			p     core.Period
			typ   string
			total int64
		)
		if err := rows.Scan(&p.Year, &p.Month, &typ, &total); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		pt := out[p]
		pt.Period = p
		switch core.TransactionType(typ) {
		case core.Income:
			pt.Income.Cents += total
		case core.Expense:
			pt.Expenses.Cents += total
		}
		out[p] = pt
	}
	return out, rows.Err()
}

// RecurringTemplates lists every recurring transaction across all users.
func (r *SQLiteRepository) RecurringTemplates(ctx context.Context) ([]RecurringTemplate, error) {
	rows, err := r.q.QueryContext(ctx, transactionSelect+`
		WHERE t.recurring_frequency != 'none'
		ORDER BY t.user_id, t.id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}

	var templates []RecurringTemplate
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		templates = append(templates, RecurringTemplate{Transaction: t, LastOccurrence: t.Date})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range templates {
		last, err := r.lastOccurrence(ctx, templates[i].ID)
		if err != nil {
			return nil, err
		}
		if !last.IsZero() && last.After(templates[i].LastOccurrence.Time) {
			templates[i].LastOccurrence = last
		}
	}
	return templates, nil
}

func (r *SQLiteRepository) lastOccurrence(ctx context.Context, templateID int64) (core.Date, error) {
	var last sql.NullString
	err := r.q.QueryRowContext(ctx,
		`SELECT MAX(date) FROM transactions WHERE recurring_parent_id = ?`, templateID).Scan(&last)
	if err != nil {
		return core.Date{}, fmt.Errorf("last occurrence: %w", err)
	}
	if !last.Valid {
		return core.Date{}, nil
	}
	return parseDay(last.String), nil
}
