package http

import (
	"net/http"

	"moneywise/internal/core"
)

type categoriesView struct {
	page
	Income  []core.Category
	Expense []core.Category
	Form    CategoryForm
}

func (s *Server) categoriesView(r *http.Request, user core.User) (*categoriesView, error) {
	cats, err := s.categories.List(r.Context(), user.ID, nil)
	if err != nil {
		return nil, err
	}
	view := &categoriesView{page: s.userPage("Categories", user)}
	for _, c := range cats {
		if c.Type == core.Income {
			view.Income = append(view.Income, c)
		} else {
			view.Expense = append(view.Expense, c)
		}
	}
	return view, nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, user core.User) {
	view, err := s.categoriesView(r, user)
	if err != nil {
		s.serverError(w, r, "Failed to list categories", err)
		return
	}
	view.Form = CategoryForm{Type: string(core.Expense)}
	s.render(w, r, http.StatusOK, "categories.html", view)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	form := ParseCategoryForm(r.PostForm)
	in, errs := form.Validate()
	if errs != nil {
		view, err := s.categoriesView(r, user)
		if err != nil {
			s.serverError(w, r, "Failed to list categories", err)
			return
		}
		view.Form = form
		view.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "categories.html", view)
		return
	}

	if _, err := s.categories.Create(r.Context(), user.ID, in); err != nil {
		s.serverError(w, r, "Failed to create category", err)
		return
	}
	s.addFlash(w, FlashSuccess, "Category added successfully!")
	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}
