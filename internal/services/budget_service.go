package services

import (
	"context"
	"fmt"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

type BudgetInput struct {
	CategoryID     int64
	Amount         core.Money
	AlertThreshold int       // 0 means DefaultAlertThreshold
	Month          core.Date // zero means the current month
}

// BudgetService manages monthly category budgets. Spend and status are
// derived on every read.
type BudgetService struct {
	clock
	storage     *storage.SQLiteRepository
	aggregation *AggregationService
	logger      *log.Logger
}

func NewBudgetService(storage *storage.SQLiteRepository, aggregation *AggregationService, logger *log.Logger) *BudgetService {
	return &BudgetService{
		storage:     storage,
		aggregation: aggregation,
		logger:      componentLogger(logger, log.ComponentBudget),
	}
}

// CurrentMonth is the first day of the month the service clock is in.
func (s *BudgetService) CurrentMonth() core.Date {
	return core.DateOf(s.current()).FirstOfMonth()
}

// Create adds a budget. Several budgets may track the same category and month.
func (s *BudgetService) Create(ctx context.Context, userID int64, in BudgetInput) (core.Budget, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.Budget{}, err
	}
	threshold := in.AlertThreshold
	if threshold == 0 {
		threshold = core.DefaultAlertThreshold
	}
	if err := core.ValidateThreshold(threshold); err != nil {
		return core.Budget{}, err
	}
	month := in.Month
	if month.IsZero() {
		month = s.CurrentMonth()
	}

	cat, err := getCategory(ctx, s.storage, userID, in.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}
	if cat.Type != core.Expense {
		return core.Budget{}, fmt.Errorf("%w: budgets track expense categories", core.ErrInvalidCategory)
	}

	b, err := s.storage.CreateBudget(ctx, core.Budget{
		UserID:         userID,
		CategoryID:     cat.ID,
		Amount:         in.Amount,
		Month:          month.FirstOfMonth(),
		AlertThreshold: threshold,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.CategoryName = cat.Name
	b.CategoryIcon = cat.Icon
	b.CategoryColor = cat.Color

	s.logger.InfoContext(ctx, "Budget created",
		log.FieldUserID, userID,
		log.FieldBudgetID, b.ID,
		log.FieldCategoryID, cat.ID,
		log.FieldMonth, b.Month.String())
	return b, nil
}

// List returns the budgets of month with their derived status. A zero month
// means the current one.
func (s *BudgetService) List(ctx context.Context, userID int64, month core.Date) ([]core.BudgetStatus, error) {
	if month.IsZero() {
		month = s.CurrentMonth()
	}
	budgets, err := s.storage.ListBudgets(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := s.status(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Status evaluates a single budget.
func (s *BudgetService) Status(ctx context.Context, userID, budgetID int64) (core.BudgetStatus, error) {
	b, err := s.storage.BudgetByID(ctx, userID, budgetID)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return s.status(ctx, b)
}

func (s *BudgetService) status(ctx context.Context, b core.Budget) (core.BudgetStatus, error) {
	spent, err := s.aggregation.CategorySpent(ctx, b.UserID, b.CategoryID, b.Month.Period())
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return core.EvaluateBudget(b, spent), nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, budgetID int64) error {
	if err := s.storage.DeleteBudget(ctx, userID, budgetID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Budget deleted", log.FieldUserID, userID, log.FieldBudgetID, budgetID)
	return nil
}
