package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/middleware/security"
)

const (
	sessionCookieName = "moneywise_session"
	flashCookieName   = "moneywise_flash"
	flashMaxAge       = 60 // seconds
)

var errBadSignature = errors.New("cookie signature mismatch")

// FlashCategory mirrors the alert styles of the templates.
type FlashCategory string

const (
	FlashSuccess FlashCategory = "success"
	FlashDanger  FlashCategory = "danger"
	FlashInfo    FlashCategory = "info"
	FlashWarning FlashCategory = "warning"
)

type Flash struct {
	Category FlashCategory `json:"c"`
	Message  string        `json:"m"`
}

// cookieSigner signs cookie values as value.base64url(HMAC-SHA256(value)).
type cookieSigner struct {
	key []byte
}

func newCookieSigner(secret string) cookieSigner {
	return cookieSigner{key: []byte(secret)}
}

func (c cookieSigner) mac(name, value string) []byte {
	m := hmac.New(sha256.New, c.key)
	m.Write([]byte(name))
	m.Write([]byte{0})
	m.Write([]byte(value))
	return m.Sum(nil)
}

// Sign binds value to the cookie name so a signed flash cannot be replayed as
// a session.
func (c cookieSigner) Sign(name, value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(c.mac(name, value))
}

func (c cookieSigner) Verify(name, signed string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", errBadSignature
	}
	value, sig := signed[:i], signed[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, c.mac(name, value)) {
		return "", errBadSignature
	}
	return value, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.signer.Sign(sessionCookieName, token),
		Path:     "/",
		MaxAge:   int(s.opts.SessionLifetime / time.Second),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken returns the verified raw token of the request, if any.
func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	token, err := s.signer.Verify(sessionCookieName, c.Value)
	if err != nil {
		return ""
	}
	return token
}

// currentUser resolves the session cookie. ok is false for anonymous requests.
func (s *Server) currentUser(r *http.Request) (core.User, bool) {
	token := s.sessionToken(r)
	if token == "" {
		return core.User{}, false
	}
	user, err := s.sessions.Resolve(r.Context(), token)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed", log.FieldError, err)
		}
		return core.User{}, false
	}
	return user, true
}

// authedHandler receives the signed-in user explicitly.
type authedHandler func(w http.ResponseWriter, r *http.Request, user core.User)

// authed rejects anonymous requests: JSON clients get 401, browsers are sent
// to the login page with a next parameter.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			if wantsJSON(r) {
				UnauthorizedError().Write(w)
				return
			}
			s.addFlash(w, FlashInfo, "Please log in to access this page.")
			target := "/login"
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, log.FromContext(r.Context()).With(log.FieldUserID, user.ID))
		security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r, user)
		})).ServeHTTP(w, r.WithContext(ctx))
	}
}

// addFlash queues one message for the next page render.
func (s *Server) addFlash(w http.ResponseWriter, category FlashCategory, message string) {
	s.setFlashes(w, []Flash{{Category: category, Message: message}})
}

// flashErrors queues every validation problem as a danger flash.
func (s *Server) flashErrors(w http.ResponseWriter, errs ValidationErrors) {
	msgs := errs.Messages()
	flashes := make([]Flash, 0, len(msgs))
	for _, m := range msgs {
		flashes = append(flashes, Flash{Category: FlashDanger, Message: m})
	}
	s.setFlashes(w, flashes)
}

func (s *Server) setFlashes(w http.ResponseWriter, flashes []Flash) {
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	value := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    s.signer.Sign(flashCookieName, value),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes reads and clears the flash cookie.
func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	var out []Flash
	if c, err := r.Cookie(flashCookieName); err == nil {
		s.clearCookie(w, flashCookieName)
		value, err := s.signer.Verify(flashCookieName, c.Value)
		if err != nil {
			return nil
		}
		raw, err := base64.RawURLEncoding.DecodeString(value)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Discarding undecodable flash cookie", log.FieldError, err)
			return nil
		}
	}
	return out
}
