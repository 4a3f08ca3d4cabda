package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/middleware/trace"
)

const layoutTemplate = "layout.html"

// page is the data shared by every template. Handlers embed it in their own
// view structs.
type page struct {
	Title      string
	User       *core.User
	Flashes    []Flash
	Errors     ValidationErrors
	Currencies any
	Now        time.Time
	// RequestID is shown on error pages.
	RequestID string
}

func (p *page) base() *page { return p }

type viewData interface{ base() *page }

// parseTemplates compiles each page together with the shared layout so every
// page can define its own "content" block.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		name := path.Base(p)
		if name == layoutTemplate {
			continue
		}
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "templates/"+layoutTemplate, p)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no templates found")
	}
	return out, nil
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money, currency string) string {
		return m.Format(currency)
	},
	"percent": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f)
	},
	"date": func(d core.Date) string {
		return d.Format("Jan 2, 2006")
	},
	"isoDate": func(d core.Date) string {
		return d.String()
	},
	"monthName": func(d core.Date) string {
		return d.Format("January 2006")
	},
	"title": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"hasError": func(errs ValidationErrors, field string) bool {
		_, ok := errs[field]
		return ok
	},
	"fieldError": func(errs ValidationErrors, field string) string {
		return errs[field]
	},
}

// render executes the named page into a buffer first so a template error
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data viewData) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := data.base()
	p.Currencies = core.Currencies
	p.Now = s.now()
	if popped := s.popFlashes(w, r); len(popped) > 0 {
		p.Flashes = append(popped, p.Flashes...)
	}

	t, ok := s.templates[name]
	if !ok {
		logger.ErrorContext(ctx, "Template not loaded",
			"template", name,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		logger.ErrorContext(ctx, "Template execution failed",
			"template", name,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the 404 or 500 page, or a JSON error for API clients.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	if wantsJSON(r) {
		switch status {
		case http.StatusNotFound:
			NotFoundError("not found").Write(w)
		case http.StatusInternalServerError:
			InternalServerError().Write(w)
		default:
			ErrorResponse(status, strings.ToLower(http.StatusText(status))).Write(w)
		}
		return
	}
	name := "500.html"
	if status == http.StatusNotFound {
		name = "404.html"
	}
	user, ok := s.currentUser(r)
	data := &page{Title: http.StatusText(status), RequestID: trace.GetRequestID(r.Context())}
	if ok {
		data.User = &user
	}
	s.render(w, r, status, name, data)
}

// serverError logs err and renders the 500 page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err)
	s.renderError(w, r, http.StatusInternalServerError)
}
