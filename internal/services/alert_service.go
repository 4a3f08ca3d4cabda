package services

import (
	"context"
	"fmt"

	"moneywise/internal/amqp"
	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// AlertPublisher sends budget alerts to whoever notifies the user.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg amqp.BudgetAlertMessage) error
}

// BudgetTransition records a budget whose state moved forward because of
// one transaction.
type BudgetTransition struct {
	Before core.BudgetStatus
	After  core.BudgetStatus
}

// AlertService evaluates the budgets touched by a new expense.
type AlertService struct {
	storage     *storage.SQLiteRepository
	aggregation *AggregationService
	publisher   AlertPublisher
	logger      *log.Logger
}

// NewAlertService accepts a nil publisher; alerts are then only logged.
func NewAlertService(storage *storage.SQLiteRepository, aggregation *AggregationService, publisher AlertPublisher, logger *log.Logger) *AlertService {
	return &AlertService{
		storage:     storage,
		aggregation: aggregation,
		publisher:   publisher,
		logger:      componentLogger(logger, log.ComponentAlert),
	}
}

// AfterAdd compares each budget on tx's category and month with and without
// tx and publishes an alert for every budget that entered warning, alert or
// exceeded. Publish failures are logged, never returned.
func (s *AlertService) AfterAdd(ctx context.Context, tx core.Transaction) ([]BudgetTransition, error) {
	if tx.Type != core.Expense {
		return nil, nil
	}

	budgets, err := s.storage.BudgetsForCategory(ctx, tx.UserID, tx.CategoryID, tx.Date.FirstOfMonth())
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	spent, err := s.aggregation.CategorySpent(ctx, tx.UserID, tx.CategoryID, tx.Date.Period())
	if err != nil {
		return nil, err
	}
	before := spent.Sub(tx.Amount)

	var transitions []BudgetTransition
	for _, b := range budgets {
		st0 := core.EvaluateBudget(b, before)
		st1 := core.EvaluateBudget(b, spent)
		if st1.State.Rank() <= st0.State.Rank() || st1.State == core.OnTrack {
			continue
		}
		transitions = append(transitions, BudgetTransition{Before: st0, After: st1})
	}
	if len(transitions) == 0 {
		return nil, nil
	}

	user, err := s.storage.UserByID(ctx, tx.UserID)
	if err != nil {
		return transitions, fmt.Errorf("load user for alert: %w", err)
	}
	for _, t := range transitions {
		s.publish(ctx, user, tx, t)
	}
	return transitions, nil
}

func (s *AlertService) publish(ctx context.Context, user core.User, tx core.Transaction, t BudgetTransition) {
	fields := log.NewFields().
		WithUser(user.ID).
		WithBudget(t.After.ID, string(t.After.State), t.After.PercentageUsed).
		ToSlice()

	if s.publisher == nil {
		s.logger.InfoContext(ctx, "Budget alert (no publisher configured)", fields...)
		return
	}

	msg := amqp.BudgetAlertMessage{
		BudgetID:       t.After.ID,
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Currency:       user.Currency,
		CategoryName:   t.After.CategoryName,
		Month:          t.After.Month.String(),
		AmountCents:    t.After.Amount.Cents,
		SpentCents:     t.After.Spent.Cents,
		PercentageUsed: t.After.PercentageUsed,
		AlertThreshold: t.After.AlertThreshold,
		PreviousState:  string(t.Before.State),
		State:          string(t.After.State),
		TransactionID:  tx.ID,
	}
	if err := s.publisher.PublishBudgetAlert(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish budget alert", append(fields, log.FieldError, err, log.FieldOperation, log.OpPublish)...)
		return
	}
	s.logger.InfoContext(ctx, "Budget alert published", fields...)
}
