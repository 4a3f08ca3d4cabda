package services

import (
	"context"
	"fmt"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

// AggregationService computes read-only totals over a user's ledger. It
// holds no state beyond the store.
type AggregationService struct {
	storage *storage.SQLiteRepository
}

func NewAggregationService(storage *storage.SQLiteRepository) *AggregationService {
	return &AggregationService{storage: storage}
}

func (s *AggregationService) total(ctx context.Context, userID int64, f core.TransactionFilter) (core.Money, error) {
	if err := f.Period.Validate(); err != nil {
		return core.Money{}, err
	}
	m, err := s.storage.SumTransactions(ctx, userID, f)
	if err != nil {
		return core.Money{}, fmt.Errorf("aggregate: %w", err)
	}
	return m, nil
}

// TotalIncome sums income in p; the all-time period sums everything.
func (s *AggregationService) TotalIncome(ctx context.Context, userID int64, p core.Period) (core.Money, error) {
	return s.total(ctx, userID, core.TransactionFilter{Type: core.Income, Period: p})
}

func (s *AggregationService) TotalExpenses(ctx context.Context, userID int64, p core.Period) (core.Money, error) {
	return s.total(ctx, userID, core.TransactionFilter{Type: core.Expense, Period: p})
}

// Balance is all-time income minus all-time expenses.
func (s *AggregationService) Balance(ctx context.Context, userID int64) (core.Money, error) {
	income, err := s.TotalIncome(ctx, userID, core.AllTime)
	if err != nil {
		return core.Money{}, err
	}
	expenses, err := s.TotalExpenses(ctx, userID, core.AllTime)
	if err != nil {
		return core.Money{}, err
	}
	return income.Sub(expenses), nil
}

// CategoryBreakdown groups typ transactions in p by category. Categories
// without transactions are omitted.
func (s *AggregationService) CategoryBreakdown(ctx context.Context, userID int64, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error) {
	if err := typ.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.storage.CategoryTotals(ctx, userID, core.TransactionFilter{Type: typ, Period: p})
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	if rows == nil {
		rows = []core.CategoryTotal{}
	}
	return rows, nil
}

// CategorySpent sums every transaction of categoryID in p.
func (s *AggregationService) CategorySpent(ctx context.Context, userID, categoryID int64, p core.Period) (core.Money, error) {
	return s.total(ctx, userID, core.TransactionFilter{CategoryID: categoryID, Period: p})
}

func (s *AggregationService) Summary(ctx context.Context, userID int64, p core.Period) (core.Summary, error) {
	income, err := s.TotalIncome(ctx, userID, p)
	if err != nil {
		return core.Summary{}, err
	}
	expenses, err := s.TotalExpenses(ctx, userID, p)
	if err != nil {
		return core.Summary{}, err
	}
	breakdown, err := s.CategoryBreakdown(ctx, userID, core.Expense, p)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summary{
		Period:    p,
		Income:    income,
		Expenses:  expenses,
		Net:       income.Sub(expenses),
		Breakdown: breakdown,
	}, nil
}

// Trend returns one point per month for the months ending at end, oldest
// first. Months without activity are zero.
func (s *AggregationService) Trend(ctx context.Context, userID int64, end core.Period, months int) ([]core.TrendPoint, error) {
	if end.IsAllTime() {
		return nil, fmt.Errorf("trend needs a bounded end month: %w", core.ErrInvalidDate)
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if months <= 0 {
		return []core.TrendPoint{}, nil
	}

	endStart, endBound := end.Bounds()
	first := endStart.AddDatePeriod(0, -(months - 1))
	start, _ := first.Bounds()

	totals, err := s.storage.MonthlyTotals(ctx, userID, start, endBound)
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}

	points := make([]core.TrendPoint, 0, months)
	for i := 0; i < months; i++ {
		p := start.AddDatePeriod(0, i)
		pt, ok := totals[p]
		if !ok {
			pt = core.TrendPoint{Period: p}
		}
		points = append(points, pt)
	}
	return points, nil
}
