package http

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"moneywise/internal/core"
	"moneywise/internal/services"
)

// trendMonths is how many months the income/expense chart covers.
const trendMonths = 6

type dashboardView struct {
	page
	Period   core.Period
	Month    core.Date
	Summary  core.Summary
	Balance  core.Money
	Recent   []core.Transaction
	Budgets  []core.BudgetStatus
	Currency string
}

func (s *Server) userPage(title string, user core.User) page {
	return page{Title: title, User: &user}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	period := ParseMonthParams(r.URL.Query(), s.now())
	month, _ := period.Bounds()

	var (
		summary core.Summary
		balance core.Money
		recent  []core.Transaction
		budgets []core.BudgetStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary, err = s.aggregation.Summary(gctx, user.ID, period)
		return wrapLoad("summary", err)
	})
	g.Go(func() (err error) {
		balance, err = s.aggregation.Balance(gctx, user.ID)
		return wrapLoad("balance", err)
	})
	g.Go(func() (err error) {
		recent, err = s.ledger.Recent(gctx, user.ID, services.RecentTransactions)
		return wrapLoad("recent transactions", err)
	})
	g.Go(func() (err error) {
		budgets, err = s.budgets.List(gctx, user.ID, month)
		return wrapLoad("budgets", err)
	})
	if err := g.Wait(); err != nil {
		s.serverError(w, r, "Failed to load dashboard", err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard.html", &dashboardView{
		page:     s.userPage("Dashboard", user),
		Period:   period,
		Month:    month,
		Summary:  summary,
		Balance:  balance,
		Recent:   recent,
		Budgets:  budgets,
		Currency: user.Currency,
	})
}

func wrapLoad(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

type breakdownResponse struct {
	Labels  []string  `json:"labels"`
	Amounts []float64 `json:"amounts"`
	Colors  []string  `json:"colors"`
}

func (s *Server) handleAPIExpenseBreakdown(w http.ResponseWriter, r *http.Request, user core.User) {
	period := ParseMonthParams(r.URL.Query(), s.now())
	totals, err := s.aggregation.CategoryBreakdown(r.Context(), user.ID, core.Expense, period)
	if err != nil {
		s.serverError(w, r, "Failed to load expense breakdown", err)
		return
	}

	resp := breakdownResponse{
		Labels:  make([]string, 0, len(totals)),
		Amounts: make([]float64, 0, len(totals)),
		Colors:  make([]string, 0, len(totals)),
	}
	for _, t := range totals {
		resp.Labels = append(resp.Labels, t.Name)
		resp.Amounts = append(resp.Amounts, t.Total.Float())
		resp.Colors = append(resp.Colors, t.Color)
	}
	NewJSONResponse().Data(resp).Write(w)
}

type trendResponse struct {
	Months   []string  `json:"months"`
	Income   []float64 `json:"income"`
	Expenses []float64 `json:"expenses"`
}

func (s *Server) handleAPIIncomeExpenseTrend(w http.ResponseWriter, r *http.Request, user core.User) {
	end := ParseMonthParams(r.URL.Query(), s.now())
	points, err := s.aggregation.Trend(r.Context(), user.ID, end, trendMonths)
	if err != nil {
		s.serverError(w, r, "Failed to load trend", err)
		return
	}

	resp := trendResponse{
		Months:   make([]string, 0, len(points)),
		Income:   make([]float64, 0, len(points)),
		Expenses: make([]float64, 0, len(points)),
	}
	for _, p := range points {
		resp.Months = append(resp.Months, p.Period.Label())
		resp.Income = append(resp.Income, p.Income.Float())
		resp.Expenses = append(resp.Expenses, p.Expenses.Float())
	}
	NewJSONResponse().Data(resp).Write(w)
}

type categoryTotalJSON struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color"`
	Total      float64 `json:"total"`
}

type summaryResponse struct {
	Year      int                 `json:"year"`
	Month     int                 `json:"month"`
	Currency  string              `json:"currency"`
	Income    float64             `json:"income"`
	Expenses  float64             `json:"expenses"`
	Net       float64             `json:"net"`
	Breakdown []categoryTotalJSON `json:"breakdown"`
}

func (s *Server) handleAPIDashboardSummary(w http.ResponseWriter, r *http.Request, user core.User) {
	period := ParseMonthParams(r.URL.Query(), s.now())
	sum, err := s.aggregation.Summary(r.Context(), user.ID, period)
	if err != nil {
		s.serverError(w, r, "Failed to load summary", err)
		return
	}

	resp := summaryResponse{
		Year:      period.Year,
		Month:     period.Month,
		Currency:  user.Currency,
		Income:    sum.Income.Float(),
		Expenses:  sum.Expenses.Float(),
		Net:       sum.Net.Float(),
		Breakdown: make([]categoryTotalJSON, 0, len(sum.Breakdown)),
	}
	for _, t := range sum.Breakdown {
		resp.Breakdown = append(resp.Breakdown, categoryTotalJSON{
			CategoryID: t.CategoryID,
			Name:       t.Name,
			Icon:       t.Icon,
			Color:      t.Color,
			Total:      t.Total.Float(),
		})
	}
	NewJSONResponse().Data(resp).Write(w)
}
