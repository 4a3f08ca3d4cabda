package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// MaxDescriptionLength bounds transaction descriptions, in characters.
const MaxDescriptionLength = 200

// RecentTransactions is how many entries the dashboard shows.
const RecentTransactions = 10

type AddTransactionInput struct {
	CategoryID  int64
	Amount      core.Money
	Type        core.TransactionType
	Description string
	Date        string // YYYY-MM-DD
	Frequency   core.Frequency
	ParentID    int64 // set by the recurring processor
}

// LedgerService adds, deletes and lists transactions.
type LedgerService struct {
	storage *storage.SQLiteRepository
	alerts  *AlertService
	logger  *log.Logger
	sl      *log.StructuredLogger
}

// NewLedgerService accepts a nil alert service, in which case budgets are
// not evaluated after adds.
func NewLedgerService(storage *storage.SQLiteRepository, alerts *AlertService, logger *log.Logger) *LedgerService {
	l := componentLogger(logger, log.ComponentLedger)
	return &LedgerService{
		storage: storage,
		alerts:  alerts,
		logger:  l,
		sl:      log.NewStructuredLogger(l),
	}
}

// Add validates in and stores the transaction. Budgets on the category are
// evaluated after the insert commits.
func (s *LedgerService) Add(ctx context.Context, userID int64, in AddTransactionInput) (core.Transaction, error) {
	if err := in.Type.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := in.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	freq, err := core.ParseFrequency(string(in.Frequency))
	if err != nil {
		return core.Transaction{}, err
	}
	desc := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return core.Transaction{}, fmt.Errorf("description longer than %d characters", MaxDescriptionLength)
	}

	cat, err := getCategory(ctx, s.storage, userID, in.CategoryID)
	if err != nil {
		return core.Transaction{}, err
	}
	if cat.Type != in.Type {
		return core.Transaction{}, fmt.Errorf("%w: %s category used for %s", core.ErrInvalidCategory, cat.Type, in.Type)
	}

	tx, err := s.storage.CreateTransaction(ctx, core.Transaction{
		UserID:      userID,
		CategoryID:  cat.ID,
		Amount:      in.Amount,
		Type:        in.Type,
		Description: desc,
		Date:        date,
		Frequency:   freq,
		ParentID:    in.ParentID,
	})
	if err != nil {
		s.sl.LogError(ctx, "Failed to add transaction", err, log.ComponentLedger, log.OpCreate, log.NewFields().WithUser(userID))
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	tx.CategoryName = cat.Name
	tx.CategoryIcon = cat.Icon
	tx.CategoryColor = cat.Color

	s.sl.LogTransactionAdded(ctx, userID, tx.ID, tx.CategoryID, string(tx.Type), tx.Amount.Cents)

	if s.alerts != nil {
		if _, err := s.alerts.AfterAdd(ctx, tx); err != nil {
			s.logger.WarnContext(ctx, "Budget evaluation failed",
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
		}
	}
	return tx, nil
}

// Delete returns ErrNotFound when the transaction is missing or owned by
// another user.
func (s *LedgerService) Delete(ctx context.Context, userID, transactionID int64) error {
	tx, err := s.storage.TransactionByID(ctx, userID, transactionID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, userID, transactionID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldTransactionID, transactionID,
		log.FieldTxType, tx.Type,
		log.FieldAmountCents, tx.Amount.Cents)
	return nil
}

// List returns the user's transactions newest first.
func (s *LedgerService) List(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" {
		if err := f.Type.Validate(); err != nil {
			return nil, err
		}
	}
	if err := f.Period.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.storage.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Recent returns the n latest transactions.
func (s *LedgerService) Recent(ctx context.Context, userID int64, n int) ([]core.Transaction, error) {
	if n <= 0 {
		n = RecentTransactions
	}
	return s.List(ctx, userID, core.TransactionFilter{Limit: n})
}
