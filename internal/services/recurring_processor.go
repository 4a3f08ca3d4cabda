package services

import (
	"context"
	"fmt"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// RecurringProcessor materializes occurrences of recurring transactions.
// Templates are never modified; the newest linked occurrence marks progress.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	ledger  *LedgerService
	logger  *log.Logger
}

func NewRecurringProcessor(storage *storage.SQLiteRepository, ledger *LedgerService, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		storage: storage,
		ledger:  ledger,
		logger:  componentLogger(logger, log.ComponentRecurring),
	}
}

// ProcessDue adds one occurrence dated today for every template that is due
// and returns how many were created. A failing template is logged and
// skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.storage.RecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load recurring templates: %w", err)
	}

	today := core.DateOf(now)
	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"templates", len(templates),
		"processing_date", today.String())

	created := 0
	for _, t := range templates {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		// future-dated templates start counting on their own date
		if t.Date.After(today.Time) || t.LastOccurrence.After(today.Time) {
			continue
		}

		checker, err := GetDuenessChecker(t.Frequency)
		if err != nil {
			p.logger.ErrorContext(ctx, "Unknown recurring frequency",
				log.FieldTemplateID, t.ID,
				log.FieldFrequency, string(t.Frequency))
			continue
		}
		if !checker.IsDue(t.LastOccurrence, today, t.Date) {
			continue
		}

		occ, err := p.ledger.Add(ctx, t.UserID, AddTransactionInput{
			CategoryID:  t.CategoryID,
			Amount:      t.Amount,
			Type:        t.Type,
			Description: t.Description,
			Date:        today.String(),
			Frequency:   core.None,
			ParentID:    t.ID,
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to create recurring occurrence",
				log.FieldTemplateID, t.ID,
				log.FieldUserID, t.UserID,
				log.FieldError, err)
			continue
		}

		created++
		p.logger.InfoContext(ctx, "Created recurring occurrence",
			log.FieldTemplateID, t.ID,
			log.FieldTransactionID, occ.ID,
			log.FieldAmountCents, occ.Amount.Cents,
			log.FieldFrequency, string(t.Frequency))
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"checked", len(templates))
	return created, nil
}
