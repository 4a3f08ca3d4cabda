package http

import (
	"errors"
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/log"
)

type signupView struct {
	page
	Form SignupForm
}

type loginView struct {
	page
	Username string
	Next     string
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", &signupView{
		page: page{Title: "Sign Up"},
		Form: SignupForm{Currency: core.DefaultCurrency},
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	form := ParseSignupForm(r.PostForm)
	view := &signupView{page: page{Title: "Sign Up"}, Form: form}
	view.Form.Password, view.Form.ConfirmPassword = "", ""

	if errs := form.Validate(); errs != nil {
		view.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", view)
		return
	}

	_, err := s.identity.Register(r.Context(), form.Input())
	switch {
	case errors.Is(err, core.ErrDuplicateUsername):
		view.Errors = ValidationErrors{"username": "Username already exists"}
	case errors.Is(err, core.ErrDuplicateEmail):
		view.Errors = ValidationErrors{"email": "Email already registered"}
	case err != nil:
		s.serverError(w, r, "Registration failed", err)
		return
	}
	if view.Errors != nil {
		view.Flashes = []Flash{{Category: FlashDanger, Message: view.Errors.Messages()[0]}}
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", view)
		return
	}

	s.addFlash(w, FlashSuccess, "Account created successfully! Please login.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := SafeRedirect(r.URL.Query().Get("next"), "")
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, SafeRedirect(next, "/dashboard"), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", &loginView{page: page{Title: "Login"}, Next: next})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	form := ParseLoginForm(r.PostForm)
	next := SafeRedirect(r.Form.Get("next"), "")
	view := &loginView{page: page{Title: "Login"}, Username: form.Username, Next: next}

	if errs := form.Validate(); errs != nil {
		view.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", view)
		return
	}

	user, err := s.identity.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, core.ErrAuthFailure) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login failed",
			log.FieldUsername, form.Username,
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		view.Flashes = []Flash{{Category: FlashDanger, Message: "Invalid username or password!"}}
		s.render(w, r, http.StatusUnauthorized, "login.html", view)
		return
	}
	if err != nil {
		s.serverError(w, r, "Login failed", err)
		return
	}

	token, err := s.sessions.Create(r.Context(), user.ID, s.opts.SessionLifetime)
	if err != nil {
		s.serverError(w, r, "Session create failed", err)
		return
	}
	s.setSessionCookie(w, token)
	s.countLogin()

	s.addFlash(w, FlashSuccess, "Welcome back, "+user.Username+"!")
	http.Redirect(w, r, SafeRedirect(next, "/dashboard"), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.sessionToken(r); token != "" {
		if err := s.sessions.Revoke(r.Context(), token); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Session revoke failed", log.FieldError, err)
		}
	}
	s.clearCookie(w, sessionCookieName)
	s.addFlash(w, FlashInfo, "You have been logged out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
