package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// Used when a category is created without a colour or icon.
const (
	DefaultCategoryColor = "#6366F1"
	DefaultCategoryIcon  = "💰"
)

type catalogEntry struct {
	Name  string
	Icon  string
	Color string
}

var defaultIncomeCategories = []catalogEntry{
	{"Salary", "💼", "#10B981"},
	{"Freelance", "💰", "#34D399"},
	{"Investments", "📈", "#059669"},
	{"Gifts", "🎁", "#6EE7B7"},
	{"Other Income", "💵", "#A7F3D0"},
}

var defaultExpenseCategories = []catalogEntry{
	{"Food & Dining", "🍔", "#EF4444"},
	{"Transportation", "🚗", "#F87171"},
	{"Housing/Rent", "🏠", "#DC2626"},
	{"Utilities", "⚡", "#B91C1C"},
	{"Groceries", "🛒", "#991B1B"},
	{"Entertainment", "🎬", "#F59E0B"},
	{"Shopping", "🛍️", "#FBBF24"},
	{"Healthcare", "💊", "#F59E0B"},
	{"Education", "📚", "#D97706"},
	{"Bills & Subscriptions", "💳", "#B45309"},
	{"Travel", "✈️", "#6366F1"},
	{"Fitness", "💪", "#8B5CF6"},
	{"Personal Care", "💄", "#EC4899"},
	{"Gifts & Donations", "🎁", "#F472B6"},
	{"Other Expenses", "📁", "#94A3B8"},
}

// DefaultCategories returns the catalog seeded for every new user.
func DefaultCategories(userID int64) []core.Category {
	out := make([]core.Category, 0, len(defaultIncomeCategories)+len(defaultExpenseCategories))
	add := func(entries []catalogEntry, typ core.TransactionType) {
		for _, e := range entries {
			out = append(out, core.Category{
				UserID:    userID,
				Name:      e.Name,
				Type:      typ,
				Icon:      e.Icon,
				Color:     e.Color,
				IsDefault: true,
			})
		}
	}
	add(defaultIncomeCategories, core.Income)
	add(defaultExpenseCategories, core.Expense)
	return out
}

type CategoryInput struct {
	Name  string
	Type  core.TransactionType
	Icon  string
	Color string
}

// CategoryService manages the per-user category registry.
type CategoryService struct {
	storage *storage.SQLiteRepository
	logger  *log.Logger
}

func NewCategoryService(storage *storage.SQLiteRepository, logger *log.Logger) *CategoryService {
	return &CategoryService{
		storage: storage,
		logger:  componentLogger(logger, log.ComponentCategory),
	}
}

// SeedDefaults inserts the default catalog for userID, all or nothing.
func (s *CategoryService) SeedDefaults(ctx context.Context, userID int64) ([]core.Category, error) {
	return seedDefaults(ctx, s.storage, userID)
}

func seedDefaults(ctx context.Context, repo *storage.SQLiteRepository, userID int64) ([]core.Category, error) {
	cats, err := repo.CreateCategories(ctx, DefaultCategories(userID))
	if err != nil {
		return nil, fmt.Errorf("seed default categories: %w", err)
	}
	return cats, nil
}

func (s *CategoryService) Create(ctx context.Context, userID int64, in CategoryInput) (core.Category, error) {
	c := core.Category{
		UserID: userID,
		Name:   strings.TrimSpace(in.Name),
		Type:   in.Type,
		Icon:   strings.TrimSpace(in.Icon),
		Color:  strings.TrimSpace(in.Color),
	}
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	created, err := s.storage.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID,
		log.FieldCategoryID, created.ID,
		log.FieldTxType, string(created.Type))
	return created, nil
}

// List returns the user's categories in creation order, optionally only
// those of one type.
func (s *CategoryService) List(ctx context.Context, userID int64, typ *core.TransactionType) ([]core.Category, error) {
	var filter core.TransactionType
	if typ != nil {
		if err := typ.Validate(); err != nil {
			return nil, err
		}
		filter = *typ
	}
	cats, err := s.storage.ListCategories(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Get returns ErrInvalidCategory when the category does not exist or
// belongs to someone else.
func (s *CategoryService) Get(ctx context.Context, userID, categoryID int64) (core.Category, error) {
	return getCategory(ctx, s.storage, userID, categoryID)
}

func getCategory(ctx context.Context, repo *storage.SQLiteRepository, userID, categoryID int64) (core.Category, error) {
	c, err := repo.CategoryByID(ctx, userID, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.ErrInvalidCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}
