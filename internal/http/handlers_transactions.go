package http

import (
	"errors"
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/log"
)

type transactionsView struct {
	page
	Transactions []core.Transaction
	Categories   []core.Category
	Filter       core.TransactionFilter
	Frequencies  []core.Frequency
	Today        core.Date
	Currency     string
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	filter := ParseTransactionFilter(r.URL.Query())

	txs, err := s.ledger.List(ctx, user.ID, filter)
	if err != nil {
		s.serverError(w, r, "Failed to list transactions", err)
		return
	}
	cats, err := s.categories.List(ctx, user.ID, nil)
	if err != nil {
		s.serverError(w, r, "Failed to list categories", err)
		return
	}

	s.render(w, r, http.StatusOK, "transactions.html", &transactionsView{
		page:         s.userPage("Transactions", user),
		Transactions: txs,
		Categories:   cats,
		Filter:       filter,
		Frequencies:  []core.Frequency{core.Daily, core.Weekly, core.Monthly, core.Yearly},
		Today:        core.DateOf(s.now()),
		Currency:     user.Currency,
	})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	back := SafeRedirect(r.PostForm.Get("next"), "/transactions")

	in, errs := ParseTransactionForm(r.PostForm).Validate()
	if errs != nil {
		s.flashErrors(w, errs)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	tx, err := s.ledger.Add(r.Context(), user.ID, in)
	switch {
	case errors.Is(err, core.ErrInvalidCategory):
		s.addFlash(w, FlashDanger, "Invalid category!")
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidType), errors.Is(err, core.ErrInvalidFrequency):
		s.addFlash(w, FlashDanger, "Invalid transaction: "+err.Error())
	case err != nil:
		s.serverError(w, r, "Failed to add transaction", err)
		return
	default:
		s.countTransaction()
		log.FromContext(r.Context()).DebugContext(r.Context(), "Transaction added via web",
			log.FieldTransactionID, tx.ID)
		s.addFlash(w, FlashSuccess, "Transaction added successfully!")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, user core.User) {
	id, ok := PathID(r, "id")
	if !ok {
		s.addFlash(w, FlashDanger, "Transaction not found!")
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
		return
	}

	err := s.ledger.Delete(r.Context(), user.ID, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.addFlash(w, FlashDanger, "Transaction not found!")
	case err != nil:
		s.serverError(w, r, "Failed to delete transaction", err)
		return
	default:
		s.addFlash(w, FlashSuccess, "Transaction deleted successfully!")
	}
	http.Redirect(w, r, "/transactions", http.StatusSeeOther)
}
