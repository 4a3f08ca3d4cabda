package http

import (
	"errors"
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/log"
)

type profileView struct {
	page
	Form ProfileForm
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user core.User) {
	s.render(w, r, http.StatusOK, "profile.html", &profileView{
		page: s.userPage("Profile", user),
		Form: ProfileForm{Email: user.Email, Currency: user.Currency},
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	form := ParseProfileForm(r.PostForm)
	view := &profileView{page: s.userPage("Profile", user), Form: form}

	if errs := form.Validate(); errs != nil {
		view.Errors = errs
		s.render(w, r, http.StatusUnprocessableEntity, "profile.html", view)
		return
	}

	_, err := s.identity.UpdateProfile(r.Context(), user.ID, form.Email, form.Currency)
	if errors.Is(err, core.ErrDuplicateEmail) {
		view.Errors = ValidationErrors{"email": "Email already registered"}
		s.render(w, r, http.StatusUnprocessableEntity, "profile.html", view)
		return
	}
	if err != nil {
		s.serverError(w, r, "Failed to update profile", err)
		return
	}
	s.addFlash(w, FlashSuccess, "Profile updated successfully!")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// handleChangePassword revokes every session of the user and signs this
// browser back in with a fresh one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	form := ParsePasswordForm(r.PostForm)
	if errs := form.Validate(); errs != nil {
		s.flashErrors(w, errs)
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	err := s.identity.ChangePassword(ctx, user.ID, form.CurrentPassword, form.NewPassword)
	if errors.Is(err, core.ErrAuthFailure) {
		s.addFlash(w, FlashDanger, "Current password is incorrect!")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.serverError(w, r, "Failed to change password", err)
		return
	}

	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to revoke sessions", log.FieldError, err)
	}
	token, err := s.sessions.Create(ctx, user.ID, s.opts.SessionLifetime)
	if err != nil {
		s.serverError(w, r, "Session create failed", err)
		return
	}
	s.setSessionCookie(w, token)
	s.addFlash(w, FlashSuccess, "Password changed successfully!")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// handleDeleteAccount removes the user and all owned data after checking
// the password once more.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, user core.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if _, err := s.identity.Authenticate(ctx, user.Username, r.PostForm.Get("password")); err != nil {
		if !errors.Is(err, core.ErrAuthFailure) {
			s.serverError(w, r, "Failed to verify password", err)
			return
		}
		s.addFlash(w, FlashDanger, "Password is incorrect!")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	if err := s.identity.DeleteUser(ctx, user.ID); err != nil {
		s.serverError(w, r, "Failed to delete account", err)
		return
	}
	s.clearCookie(w, sessionCookieName)
	s.addFlash(w, FlashInfo, "Your account has been deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
