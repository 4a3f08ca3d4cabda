package http

import (
	"errors"
	"net/http"

	"moneywise/internal/core"
)

type budgetsView struct {
	page
	Month      core.Date
	Prev, Next core.Period
	Budgets    []core.BudgetStatus
	Categories []core.Category
	Form       BudgetForm
	Currency   string
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	period := ParseMonthParams(r.URL.Query(), s.now())
	month, next := period.Bounds()

	budgets, err := s.budgets.List(ctx, user.ID, month)
	if err != nil {
		s.serverError(w, r, "Failed to list budgets", err)
		return
	}
	expense := core.Expense
	cats, err := s.categories.List(ctx, user.ID, &expense)
	if err != nil {
		s.serverError(w, r, "Failed to list categories", err)
		return
	}

	s.render(w, r, http.StatusOK, "budgets.html", &budgetsView{
		page:       s.userPage("Budgets", user),
		Month:      month,
		Prev:       period.Prev(),
		Next:       next.Period(),
		Budgets:    budgets,
		Categories: cats,
		Form:       BudgetForm{AlertThreshold: "80"},
		Currency:   user.Currency,
	})
}

// handleCreateBudget adds a budget for the month named by the year and month
// form fields, defaulting to the current month.
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	period := ParseMonthParams(r.PostForm, s.now())
	back := "/budgets?" + monthQuery(period)

	in, errs := ParseBudgetForm(r.PostForm).Validate()
	if errs != nil {
		s.flashErrors(w, errs)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	in.Month, _ = period.Bounds()

	_, err := s.budgets.Create(r.Context(), user.ID, in)
	switch {
	case errors.Is(err, core.ErrInvalidCategory):
		s.addFlash(w, FlashDanger, "Invalid category!")
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidThreshold):
		s.addFlash(w, FlashDanger, "Invalid budget: "+err.Error())
	case err != nil:
		s.serverError(w, r, "Failed to create budget", err)
		return
	default:
		s.addFlash(w, FlashSuccess, "Budget created successfully!")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, user core.User) {
	id, ok := PathID(r, "id")
	if !ok {
		s.addFlash(w, FlashDanger, "Budget not found!")
		http.Redirect(w, r, "/budgets", http.StatusSeeOther)
		return
	}

	err := s.budgets.Delete(r.Context(), user.ID, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.addFlash(w, FlashDanger, "Budget not found!")
	case err != nil:
		s.serverError(w, r, "Failed to delete budget", err)
		return
	default:
		s.addFlash(w, FlashSuccess, "Budget deleted successfully!")
	}
	http.Redirect(w, r, SafeRedirect(r.FormValue("next"), "/budgets"), http.StatusSeeOther)
}
