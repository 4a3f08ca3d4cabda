package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"moneywise/internal/log"
	"moneywise/internal/middleware/ratelimit"
	"moneywise/internal/middleware/security"
	"moneywise/internal/middleware/trace"
	"moneywise/internal/services"
	appweb "moneywise/web"
)

// Services are the application services the handlers call into.
type Services struct {
	Identity    *services.IdentityService
	Sessions    *services.SessionService
	Categories  *services.CategoryService
	Ledger      *services.LedgerService
	Aggregation *services.AggregationService
	Budgets     *services.BudgetService
}

// Pinger reports database reachability for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures sessions, limits and the clock.
type Options struct {
	SecretKey          string
	SessionLifetime    time.Duration
	CookieSecure       bool
	RateLimitPerMinute int
	TrustedProxies     []string

	// Now defaults to time.Now.
	Now func() time.Time
	// FS overrides the embedded templates and static assets.
	FS fs.FS
}

type appMetrics struct {
	transactionsAdded int64
	logins            int64
	uptime            time.Time
}

type Server struct {
	http.Server
	templates map[string]*template.Template
	logger    *log.Logger
	opts      Options
	signer    cookieSigner
	now       func() time.Time

	identity    *services.IdentityService
	sessions    *services.SessionService
	categories  *services.CategoryService
	ledger      *services.LedgerService
	aggregation *services.AggregationService
	budgets     *services.BudgetService
	db          Pinger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server. A template parse failure is logged and leaves
// page routes answering 500.
func NewServer(addr string, svc Services, db Pinger, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionLifetime <= 0 {
		opts.SessionLifetime = services.DefaultSessionLifetime
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = appweb.FS
	}

	s := &Server{
		logger:      logger.WithComponent(log.ComponentHTTP),
		opts:        opts,
		signer:      newCookieSigner(opts.SecretKey),
		now:         opts.Now,
		identity:    svc.Identity,
		sessions:    svc.Sessions,
		categories:  svc.Categories,
		ledger:      svc.Ledger,
		aggregation: svc.Aggregation,
		budgets:     svc.Budgets,
		db:          db,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		appMetrics:  &appMetrics{uptime: opts.Now()},
	}
	s.securityDetector = security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	templates, err := parseTemplates(fsys)
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = templates

	mux := http.NewServeMux()
	s.routes(mux, fsys)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.UnsafeMethods, s.handleRateLimited)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = sameOrigin(handler)
	handler = limited(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.recoverer(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, fsys fs.FS) {
	if sub, err := fs.Sub(fsys, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /dashboard", s.authed(s.handleDashboard))
	mux.HandleFunc("GET /transactions", s.authed(s.handleTransactions))
	mux.HandleFunc("POST /transactions/add", s.authed(s.handleAddTransaction))
	mux.HandleFunc("POST /transactions/delete/{id}", s.authed(s.handleDeleteTransaction))
	mux.HandleFunc("GET /categories", s.authed(s.handleCategories))
	mux.HandleFunc("POST /categories", s.authed(s.handleCreateCategory))
	mux.HandleFunc("GET /budgets", s.authed(s.handleBudgets))
	mux.HandleFunc("POST /budgets", s.authed(s.handleCreateBudget))
	mux.HandleFunc("POST /budgets/delete/{id}", s.authed(s.handleDeleteBudget))
	mux.HandleFunc("GET /profile", s.authed(s.handleProfile))
	mux.HandleFunc("POST /profile", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("POST /profile/password", s.authed(s.handleChangePassword))
	mux.HandleFunc("POST /profile/delete", s.authed(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/expense-breakdown", s.authed(s.handleAPIExpenseBreakdown))
	mux.HandleFunc("GET /api/income-expense-trend", s.authed(s.handleAPIIncomeExpenseTrend))
	mux.HandleFunc("GET /api/dashboard-summary", s.authed(s.handleAPIDashboardSummary))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound)
	})
}

// Shutdown gracefully shuts down the server and its cleanup goroutines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if wantsJSON(r) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// recoverer turns a handler panic into a 500 page.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.serverError(w, r, "Handler panic", fmt.Errorf("%v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sameOrigin rejects state-changing requests whose Origin names another host.
// Requests without an Origin header pass; the SameSite=Lax session cookie
// covers them.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ratelimit.UnsafeMethods(r) {
			if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
				u, err := url.Parse(origin)
				if err != nil || u.Host != r.Host {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countTransaction() {
	atomic.AddInt64(&s.appMetrics.transactionsAdded, 1)
}

func (s *Server) countLogin() {
	atomic.AddInt64(&s.appMetrics.logins, 1)
}
