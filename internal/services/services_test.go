package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"moneywise/internal/amqp"
	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []amqp.BudgetAlertMessage
	err  error
}

func (f *fakePublisher) PublishBudgetAlert(_ context.Context, msg amqp.BudgetAlertMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) sent() []amqp.BudgetAlertMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp.BudgetAlertMessage(nil), f.msgs...)
}

type testEnv struct {
	repo       *storage.SQLiteRepository
	identity   *IdentityService
	sessions   *SessionService
	categories *CategoryService
	ledger     *LedgerService
	agg        *AggregationService
	budgets    *BudgetService
	alerts     *AlertService
	recurring  *RecurringProcessor
	pub        *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "moneywise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.Discard()
	pub := &fakePublisher{}
	agg := NewAggregationService(repo)
	alerts := NewAlertService(repo, agg, pub, logger)
	ledger := NewLedgerService(repo, alerts, logger)
	identity := NewIdentityService(repo, logger)
	identity.SetHashCost(bcrypt.MinCost)

	return &testEnv{
		repo:       repo,
		identity:   identity,
		sessions:   NewSessionService(repo, logger),
		categories: NewCategoryService(repo, logger),
		ledger:     ledger,
		agg:        agg,
		budgets:    NewBudgetService(repo, agg, logger),
		alerts:     alerts,
		recurring:  NewRecurringProcessor(repo, ledger, logger),
		pub:        pub,
	}
}

func (e *testEnv) register(t *testing.T, username string) core.User {
	t.Helper()
	u, err := e.identity.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
		Currency: "USD",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) category(t *testing.T, userID int64, name string) core.Category {
	t.Helper()
	cats, err := e.categories.List(context.Background(), userID, nil)
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return core.Category{}
}

func (e *testEnv) add(t *testing.T, userID int64, cat core.Category, cents int64, date string) core.Transaction {
	t.Helper()
	tx, err := e.ledger.Add(context.Background(), userID, AddTransactionInput{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: cents},
		Type:       cat.Type,
		Date:       date,
	})
	require.NoError(t, err)
	return tx
}

func TestRegisterSeedsDefaultCategories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")

	income := core.Income
	expense := core.Expense
	inc, err := env.categories.List(ctx, u.ID, &income)
	require.NoError(t, err)
	exp, err := env.categories.List(ctx, u.ID, &expense)
	require.NoError(t, err)

	assert.Len(t, inc, 5)
	assert.Len(t, exp, 15)
	for _, c := range append(inc, exp...) {
		assert.True(t, c.IsDefault, c.Name)
		assert.True(t, core.IsHexColor(c.Color), c.Name)
	}
	assert.Equal(t, "Salary", inc[0].Name)
	assert.Equal(t, "Food & Dining", exp[0].Name)
}

func TestRegisterDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice")

	_, err := env.identity.Register(ctx, RegisterInput{Username: "alice", Email: "new@example.com", Password: "password1"})
	assert.ErrorIs(t, err, core.ErrDuplicateUsername)

	_, err = env.identity.Register(ctx, RegisterInput{Username: "bob", Email: "Alice@Example.com", Password: "password1"})
	assert.ErrorIs(t, err, core.ErrDuplicateEmail)

	n, err := env.repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed registrations must not create rows")
}

func TestRegisterRejectsUnknownCurrency(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.identity.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@example.com", Password: "password1", Currency: "ZZZ"})
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")

	got, err := env.identity.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, errWrong := env.identity.Authenticate(ctx, "alice", "wrong")
	_, errUnknown := env.identity.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, errWrong, core.ErrAuthFailure)
	assert.ErrorIs(t, errUnknown, core.ErrAuthFailure)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestPasswordChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")

	require.NoError(t, env.identity.SetPassword(ctx, u.ID, "second password"))
	_, err := env.identity.Authenticate(ctx, "alice", "correct horse")
	assert.ErrorIs(t, err, core.ErrAuthFailure)
	_, err = env.identity.Authenticate(ctx, "alice", "second password")
	require.NoError(t, err)

	assert.ErrorIs(t, env.identity.ChangePassword(ctx, u.ID, "nope", "third password"), core.ErrAuthFailure)
	require.NoError(t, env.identity.ChangePassword(ctx, u.ID, "second password", "third password"))
	_, err = env.identity.Authenticate(ctx, "alice", "third password")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	env.register(t, "bob")

	_, err := env.identity.UpdateProfile(ctx, alice.ID, "bob@example.com", "EUR")
	assert.ErrorIs(t, err, core.ErrDuplicateEmail)

	got, err := env.identity.UpdateProfile(ctx, alice.ID, "Alice.New@Example.com", "eur")
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", got.Email)
	assert.Equal(t, "EUR", got.Currency)
}

func TestDeleteUserCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	env.add(t, u.ID, food, 1000, "2024-03-01")

	require.NoError(t, env.identity.DeleteUser(ctx, u.ID))
	_, err := env.identity.UserByID(ctx, u.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	cats, err := env.repo.ListCategories(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env.sessions.SetClock(func() time.Time { return now })

	token, err := env.sessions.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.sessions.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, core.ErrNotFound)

	now = now.Add(2 * time.Hour)
	_, err = env.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, core.ErrNotFound, "expired sessions do not resolve")

	now = now.Add(-2 * time.Hour)
	_, err = env.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, core.ErrNotFound, "expired session row is removed on resolution")

	token2, err := env.sessions.Create(ctx, u.ID, 0)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Revoke(ctx, token2))
	_, err = env.sessions.Resolve(ctx, token2)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCategoryCreateAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	c, err := env.categories.Create(ctx, alice.ID, CategoryInput{Name: "  Pets ", Type: core.Expense, Icon: "🐶"})
	require.NoError(t, err)
	assert.Equal(t, "Pets", c.Name)
	assert.Equal(t, DefaultCategoryColor, c.Color)
	assert.False(t, c.IsDefault)

	_, err = env.categories.Create(ctx, alice.ID, CategoryInput{Name: "", Type: core.Expense})
	assert.Error(t, err)
	_, err = env.categories.Create(ctx, alice.ID, CategoryInput{Name: "X", Type: "transfer"})
	assert.ErrorIs(t, err, core.ErrInvalidType)
	_, err = env.categories.Create(ctx, alice.ID, CategoryInput{Name: "X", Type: core.Income, Color: "red"})
	assert.Error(t, err)

	_, err = env.categories.Get(ctx, bob.ID, c.ID)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestAddTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	food := env.category(t, alice.ID, "Food & Dining")
	salary := env.category(t, alice.ID, "Salary")

	valid := AddTransactionInput{CategoryID: food.ID, Amount: core.Money{Cents: 5000}, Type: core.Expense, Date: "2024-03-15"}

	tests := []struct {
		name   string
		userID int64
		mutate func(*AddTransactionInput)
		want   error
	}{
		{"other user's category", bob.ID, func(in *AddTransactionInput) {}, core.ErrInvalidCategory},
		{"missing category", alice.ID, func(in *AddTransactionInput) { in.CategoryID = 9999 }, core.ErrInvalidCategory},
		{"zero amount", alice.ID, func(in *AddTransactionInput) { in.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"negative amount", alice.ID, func(in *AddTransactionInput) { in.Amount = core.Money{Cents: -1} }, core.ErrInvalidAmount},
		{"amount over cap", alice.ID, func(in *AddTransactionInput) { in.Amount = core.Money{Cents: core.MaxAmountCents + 1} }, core.ErrInvalidAmount},
		{"bad date", alice.ID, func(in *AddTransactionInput) { in.Date = "15/03/2024" }, core.ErrInvalidDate},
		{"impossible date", alice.ID, func(in *AddTransactionInput) { in.Date = "2024-02-30" }, core.ErrInvalidDate},
		{"unknown type", alice.ID, func(in *AddTransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"type mismatch", alice.ID, func(in *AddTransactionInput) { in.Type = core.Income }, core.ErrInvalidCategory},
		{"income type on expense category", alice.ID, func(in *AddTransactionInput) { in.CategoryID = salary.ID }, core.ErrInvalidCategory},
		{"unknown frequency", alice.ID, func(in *AddTransactionInput) { in.Frequency = "hourly" }, core.ErrInvalidFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := env.ledger.Add(ctx, tt.userID, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	txs, err := env.ledger.List(ctx, alice.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs, "rejected adds must not persist anything")
}

func TestScenarioNoTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")

	income, err := env.agg.TotalIncome(ctx, u.ID, core.MonthPeriod(2024, 1))
	require.NoError(t, err)
	assert.Zero(t, income.Cents)

	breakdown, err := env.agg.CategoryBreakdown(ctx, u.ID, core.Expense, core.MonthPeriod(2024, 1))
	require.NoError(t, err)
	assert.NotNil(t, breakdown)
	assert.Empty(t, breakdown)
}

func TestScenarioExpenseInMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")

	tx := env.add(t, u.ID, food, 5000, "2024-03-15")
	assert.Equal(t, "Food & Dining", tx.CategoryName)

	total, err := env.agg.TotalExpenses(ctx, u.ID, core.MonthPeriod(2024, 3))
	require.NoError(t, err)
	assert.Equal(t, "50.00", total.String())

	other, err := env.agg.TotalExpenses(ctx, u.ID, core.MonthPeriod(2024, 4))
	require.NoError(t, err)
	assert.Zero(t, other.Cents)
}

func TestAggregationProperties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	rent := env.category(t, u.ID, "Housing/Rent")
	salary := env.category(t, u.ID, "Salary")
	gifts := env.category(t, u.ID, "Gifts")

	env.add(t, u.ID, food, 1234, "2024-03-02")
	env.add(t, u.ID, food, 766, "2024-03-20")
	env.add(t, u.ID, rent, 90000, "2024-03-01")
	env.add(t, u.ID, rent, 90000, "2024-02-01")
	env.add(t, u.ID, salary, 300000, "2024-03-01")
	env.add(t, u.ID, gifts, 2500, "2023-12-25")

	balance, err := env.agg.Balance(ctx, u.ID)
	require.NoError(t, err)
	income, err := env.agg.TotalIncome(ctx, u.ID, core.AllTime)
	require.NoError(t, err)
	expenses, err := env.agg.TotalExpenses(ctx, u.ID, core.AllTime)
	require.NoError(t, err)
	assert.Equal(t, income.Cents-expenses.Cents, balance.Cents)
	assert.Equal(t, int64(302500-182000), balance.Cents)

	for _, p := range []core.Period{core.AllTime, core.MonthPeriod(2024, 3), core.MonthPeriod(2024, 2), {Year: 2024}} {
		for _, typ := range []core.TransactionType{core.Income, core.Expense} {
			rows, err := env.agg.CategoryBreakdown(ctx, u.ID, typ, p)
			require.NoError(t, err)
			var sum int64
			for _, r := range rows {
				sum += r.Total.Cents
			}
			want, err := env.agg.total(ctx, u.ID, core.TransactionFilter{Type: typ, Period: p})
			require.NoError(t, err)
			assert.Equal(t, want.Cents, sum, "%s %+v", typ, p)
		}
	}

	march, err := env.agg.CategoryBreakdown(ctx, u.ID, core.Expense, core.MonthPeriod(2024, 3))
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "Housing/Rent", march[0].Name)
	assert.Equal(t, int64(2000), march[1].Total.Cents)

	summary, err := env.agg.Summary(ctx, u.ID, core.MonthPeriod(2024, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(300000), summary.Income.Cents)
	assert.Equal(t, int64(92000), summary.Expenses.Cents)
	assert.Equal(t, int64(208000), summary.Net.Cents)
	assert.Len(t, summary.Breakdown, 2)
}

func TestTrend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	salary := env.category(t, u.ID, "Salary")

	env.add(t, u.ID, food, 100, "2023-11-30")
	env.add(t, u.ID, salary, 500, "2024-01-10")
	env.add(t, u.ID, food, 200, "2024-03-31")
	env.add(t, u.ID, food, 999, "2024-04-01") // after the window

	points, err := env.agg.Trend(ctx, u.ID, core.MonthPeriod(2024, 3), 6)
	require.NoError(t, err)
	require.Len(t, points, 6)
	assert.Equal(t, core.MonthPeriod(2023, 10), points[0].Period)
	assert.Equal(t, core.MonthPeriod(2024, 3), points[5].Period)
	assert.Equal(t, int64(100), points[1].Expenses.Cents)
	assert.Equal(t, int64(500), points[3].Income.Cents)
	assert.Zero(t, points[4].Income.Cents+points[4].Expenses.Cents)
	assert.Equal(t, int64(200), points[5].Expenses.Cents)

	_, err = env.agg.Trend(ctx, u.ID, core.AllTime, 6)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestAddThenDeleteReverts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	env.add(t, u.ID, food, 1500, "2024-03-01")

	before, err := env.agg.TotalExpenses(ctx, u.ID, core.MonthPeriod(2024, 3))
	require.NoError(t, err)
	beforeBalance, err := env.agg.Balance(ctx, u.ID)
	require.NoError(t, err)

	tx := env.add(t, u.ID, food, 4200, "2024-03-10")
	require.NoError(t, env.ledger.Delete(ctx, u.ID, tx.ID))

	after, err := env.agg.TotalExpenses(ctx, u.ID, core.MonthPeriod(2024, 3))
	require.NoError(t, err)
	afterBalance, err := env.agg.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeBalance, afterBalance)

	txs, err := env.ledger.List(ctx, u.ID, core.TransactionFilter{})
	require.NoError(t, err)
	for _, got := range txs {
		assert.NotEqual(t, tx.ID, got.ID)
	}

	assert.ErrorIs(t, env.ledger.Delete(ctx, u.ID, tx.ID), core.ErrNotFound)
}

func TestDeleteOtherUsersTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	tx := env.add(t, alice.ID, env.category(t, alice.ID, "Food & Dining"), 100, "2024-03-01")

	assert.ErrorIs(t, env.ledger.Delete(ctx, bob.ID, tx.ID), core.ErrNotFound)
	txs, err := env.ledger.List(ctx, alice.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestListFiltersAndRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	salary := env.category(t, u.ID, "Salary")
	for i := 1; i <= 12; i++ {
		env.add(t, u.ID, food, int64(i*100), core.NewDate(2024, 3, i).String())
	}
	env.add(t, u.ID, salary, 100000, "2024-02-28")

	recent, err := env.ledger.Recent(ctx, u.ID, RecentTransactions)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "2024-03-12", recent[0].Date.String())

	// month without year does not filter
	partial, err := env.ledger.List(ctx, u.ID, core.TransactionFilter{Period: core.Period{Month: 2}})
	require.NoError(t, err)
	assert.Len(t, partial, 13)

	feb, err := env.ledger.List(ctx, u.ID, core.TransactionFilter{Period: core.MonthPeriod(2024, 2)})
	require.NoError(t, err)
	assert.Len(t, feb, 1)

	byCat, err := env.ledger.List(ctx, u.ID, core.TransactionFilter{CategoryID: salary.ID})
	require.NoError(t, err)
	assert.Len(t, byCat, 1)

	_, err = env.ledger.List(ctx, u.ID, core.TransactionFilter{Type: "transfer"})
	assert.ErrorIs(t, err, core.ErrInvalidType)
}

func TestBudgetCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	env.budgets.SetClock(func() time.Time { return time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC) })

	b, err := env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 20000}})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAlertThreshold, b.AlertThreshold)
	assert.Equal(t, "2024-03-01", b.Month.String())

	_, err = env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 20000}, AlertThreshold: 101})
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)
	_, err = env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 20000}, AlertThreshold: -5})
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)
	_, err = env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: env.category(t, u.ID, "Salary").ID, Amount: core.Money{Cents: 100}})
	assert.ErrorIs(t, err, core.ErrInvalidCategory)

	// duplicates for the same category and month are allowed
	_, err = env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 5000}, Month: core.NewDate(2024, 3, 9)})
	require.NoError(t, err)
	list, err := env.budgets.List(ctx, u.ID, core.Date{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestScenarioBudgetAlertAt90Percent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")

	_, err := env.budgets.Create(ctx, u.ID, BudgetInput{
		CategoryID: food.ID, Amount: core.Money{Cents: 20000}, AlertThreshold: 80, Month: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	env.add(t, u.ID, food, 18000, "2024-03-15")
	env.add(t, u.ID, food, 99999, "2024-04-01") // other month

	list, err := env.budgets.List(ctx, u.ID, core.NewDate(2024, 3, 1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	st := list[0]
	assert.Equal(t, int64(18000), st.Spent.Cents)
	assert.Equal(t, 90.0, st.PercentageUsed)
	assert.Equal(t, int64(2000), st.Remaining.Cents)
	assert.Equal(t, core.Alert, st.State)

	require.NoError(t, env.budgets.Delete(ctx, u.ID, st.ID))
	assert.ErrorIs(t, env.budgets.Delete(ctx, u.ID, st.ID), core.ErrNotFound)
}

func TestBudgetStatusMonotonicWithSpend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	b, err := env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 10000}, AlertThreshold: 75, Month: core.NewDate(2024, 3, 1)})
	require.NoError(t, err)

	prev := core.OnTrack
	for i := 0; i < 15; i++ {
		env.add(t, u.ID, food, 1000, "2024-03-10")
		st, err := env.budgets.Status(ctx, u.ID, b.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, st.State.Rank(), prev.Rank())
		prev = st.State
	}
	assert.Equal(t, core.Exceeded, prev)
}

func TestAlertsPublishOnForwardTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	b, err := env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 20000}, Month: core.NewDate(2024, 3, 1)})
	require.NoError(t, err)

	env.add(t, u.ID, food, 10000, "2024-03-01") // 50%, on track
	assert.Empty(t, env.pub.sent())

	env.add(t, u.ID, food, 6000, "2024-03-02") // 80%, warning
	env.add(t, u.ID, food, 500, "2024-03-03")  // 82.5%, still warning
	env.add(t, u.ID, food, 2000, "2024-03-04") // 92.5%, alert
	env.add(t, u.ID, food, 5000, "2024-04-04") // other month, ignored

	sent := env.pub.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "on_track", sent[0].PreviousState)
	assert.Equal(t, "warning", sent[0].State)
	assert.Equal(t, "warning", sent[1].PreviousState)
	assert.Equal(t, "alert", sent[1].State)
	assert.Equal(t, b.ID, sent[1].BudgetID)
	assert.Equal(t, "alice@example.com", sent[1].Email)
	assert.Equal(t, "Food & Dining", sent[1].CategoryName)
	assert.Equal(t, int64(18500), sent[1].SpentCents)

	// publisher failures never fail the add
	env.pub.err = errors.New("broker down")
	tx := env.add(t, u.ID, food, 5000, "2024-03-05")
	assert.NotZero(t, tx.ID)
}

func TestAlertsIgnoreIncome(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "alice")
	tr, err := env.alerts.AfterAdd(context.Background(), core.Transaction{UserID: u.ID, Type: core.Income, Amount: core.Money{Cents: 1}})
	require.NoError(t, err)
	assert.Empty(t, tr)
}

func TestAlertsWithoutPublisher(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	food := env.category(t, u.ID, "Food & Dining")
	_, err := env.budgets.Create(ctx, u.ID, BudgetInput{CategoryID: food.ID, Amount: core.Money{Cents: 100}, Month: core.NewDate(2024, 3, 1)})
	require.NoError(t, err)

	alerts := NewAlertService(env.repo, env.agg, nil, log.Discard())
	tx := env.add(t, u.ID, food, 150, "2024-03-01")
	tr, err := alerts.AfterAdd(ctx, tx)
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, core.Exceeded, tr[0].After.State)
}

func TestRecurringProcessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	rent := env.category(t, u.ID, "Housing/Rent")

	tmpl, err := env.ledger.Add(ctx, u.ID, AddTransactionInput{
		CategoryID: rent.ID, Amount: core.Money{Cents: 120000}, Type: core.Expense,
		Description: "Rent", Date: "2024-01-15", Frequency: core.Monthly,
	})
	require.NoError(t, err)

	at := func(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 10, 0, 0, 0, time.UTC) }

	n, err := env.recurring.ProcessDue(ctx, at(2024, 1, 20))
	require.NoError(t, err)
	assert.Zero(t, n, "template counts as the first occurrence")

	n, err = env.recurring.ProcessDue(ctx, at(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = env.recurring.ProcessDue(ctx, at(2024, 2, 16))
	require.NoError(t, err)
	assert.Zero(t, n)

	txs, err := env.ledger.List(ctx, u.ID, core.TransactionFilter{Period: core.MonthPeriod(2024, 2)})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	occ := txs[0]
	assert.Equal(t, tmpl.ID, occ.ParentID)
	assert.Equal(t, core.None, occ.Frequency)
	assert.Equal(t, "2024-02-15", occ.Date.String())
	assert.Equal(t, "Rent", occ.Description)

	got, err := env.repo.TransactionByID(ctx, u.ID, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.Date.String(), "template is never modified")
	assert.Equal(t, core.Monthly, got.Frequency)
}

func TestRecurringSkipsFutureTemplates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "alice")
	_, err := env.ledger.Add(ctx, u.ID, AddTransactionInput{
		CategoryID: env.category(t, u.ID, "Utilities").ID, Amount: core.Money{Cents: 999}, Type: core.Expense,
		Date: "2024-06-01", Frequency: core.Daily,
	})
	require.NoError(t, err)

	n, err := env.recurring.ProcessDue(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecurringProcessorNotInitialized(t *testing.T) {
	p := NewRecurringProcessor(nil, nil, log.Discard())
	_, err := p.ProcessDue(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestSchedulerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cfg := SchedulerConfig{RecurringInterval: 50 * time.Millisecond, CleanupInterval: 50 * time.Millisecond}
	s := NewScheduler(env.recurring, env.sessions, cfg, log.Discard())
	assert.False(t, s.IsRunning())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(ctx), "second start must fail")

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(stopCtx), "stopping a stopped scheduler is a no-op")
}

func TestSchedulerRestartsAfterContextCancel(t *testing.T) {
	env := newTestEnv(t)
	cfg := SchedulerConfig{RecurringInterval: 50 * time.Millisecond, CleanupInterval: 50 * time.Millisecond}
	s := NewScheduler(env.recurring, env.sessions, cfg, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Start(context.Background()), "a cancelled run must not block a new start")

	stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())
}

func TestSchedulerCronSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := NewScheduler(env.recurring, nil, SchedulerConfig{RecurringSchedule: "every tuesday"}, log.Discard())
	assert.Error(t, bad.Start(ctx))
	assert.False(t, bad.IsRunning())

	s := NewScheduler(env.recurring, nil, SchedulerConfig{RecurringSchedule: "5 0 * * *"}, log.Discard())
	require.NoError(t, s.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.Equal(t, time.Hour, cfg.RecurringInterval)
	assert.Equal(t, 6*time.Hour, cfg.CleanupInterval)

	s := NewScheduler(nil, nil, SchedulerConfig{}, nil)
	assert.Equal(t, cfg, s.config)
}
