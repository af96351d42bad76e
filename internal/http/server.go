// Package http serves the ledger as a JSON API. Each request is bound to
// the caller's cached session, so reads come from memory and writes go
// through the session's effect-then-transition path.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
	"ledger/internal/session"
	"ledger/internal/validator"
)

// Options configures a Server.
type Options struct {
	Addr             string
	Ledger           *services.LedgerService
	Processor        *services.RecurringProcessor
	Logger           *log.Logger
	SessionTTL       time.Duration
	SessionCacheSize int
	CashFlowMonths   int
	RequestTimeout   time.Duration
	RateLimit        ratelimit.Config
	// Today returns the current date; defaults to core.Today.
	Today func() core.Date
	// Ready reports whether backing services are reachable.
	Ready func(context.Context) error
}

type structValidator interface {
	Struct(any) error
}

// Server is the ledger HTTP API.
type Server struct {
	http.Server
	ledger         *services.LedgerService
	processor      *services.RecurringProcessor
	sessions       *sessionRegistry
	cacheManager   *cache.Manager
	limiter        *ratelimit.Limiter
	validate       structValidator
	logger         *log.Logger
	today          func() core.Date
	ready          func(context.Context) error
	cashFlowMonths int
}

// NewServer wires the router and its dependencies. Call Shutdown to stop
// the background cleanup goroutines it starts.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Today == nil {
		opts.Today = core.Today
	}
	if opts.CashFlowMonths <= 0 {
		opts.CashFlowMonths = 6
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		ledger:         opts.Ledger,
		processor:      opts.Processor,
		limiter:        ratelimit.NewLimiter(opts.RateLimit),
		validate:       validator.New(),
		logger:         opts.Logger,
		today:          opts.Today,
		ready:          opts.Ready,
		cashFlowMonths: opts.CashFlowMonths,
	}
	s.sessions = newSessionRegistry(opts.Ledger, opts.Processor, opts.SessionCacheSize, opts.SessionTTL, opts.Today)

	s.cacheManager = cache.NewManager(opts.Logger.WithComponent(log.ComponentCache).Logger)
	s.cacheManager.Register("sessions", s.sessions.cache)
	s.cacheManager.StartCleanup(time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(s.logger, middleware.GetReqID))
	r.Use(trace.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	transactions := resource[core.Transaction, core.TransactionPatch, transactionCreate, transactionUpdate]{
		name:       "transaction",
		collection: (*session.Session).Transactions,
		updatable:  true,
	}
	loans := resource[core.Loan, core.LoanPatch, loanCreate, loanUpdate]{
		name:       "loan",
		collection: (*session.Session).Loans,
		updatable:  true,
	}
	investments := resource[core.Investment, core.InvestmentPatch, investmentCreate, investmentUpdate]{
		name:       "investment",
		collection: (*session.Session).Investments,
		updatable:  true,
	}
	categories := resource[core.Category, core.CategoryPatch, categoryCreate, noPatch[core.CategoryPatch]]{
		name:       "category",
		collection: (*session.Session).Categories,
	}
	recurring := resource[core.RecurringTransaction, core.RecurringPatch, recurringCreate, recurringUpdate]{
		name:       "recurring transaction",
		collection: (*session.Session).Recurring,
		updatable:  true,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(s.requireUser)
		r.Use(s.limiter.Middleware(userKey, s.rateLimited))

		r.Get("/state", s.withSession(handleState))
		r.Post("/reload", s.withSession(handleReload))
		r.Get("/metrics", s.withSession(handleMetrics))
		r.Get("/dashboard/cash-flow", s.withSession(handleCashFlow))
		r.Get("/dashboard/expenses-by-category", s.withSession(handleExpensesByCategory))
		r.Post("/import", s.withSession(handleImport))

		r.Route("/transactions", transactions.routes(s))
		r.Route("/loans", loans.routes(s))
		r.Route("/categories", categories.routes(s))
		r.Route("/investments", func(r chi.Router) {
			investments.routes(s)(r)
			r.Get("/{id}/performance", s.withSession(handlePerformance))
		})
		r.Route("/recurring", func(r chi.Router) {
			r.Get("/due", s.withSession(handleRecurringDue))
			r.Post("/run", s.withSession(handleRecurringRun))
			recurring.routes(s)(r)
		})
	})
	return r
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	s.cacheManager.Stop()
	return s.Server.Shutdown(ctx)
}

type sessionHandler func(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request)

// withSession resolves the caller's session before running h.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, degraded, err := s.sessions.get(r.Context(), userFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if degraded {
			w.Header().Set("X-Ledger-Degraded", "true")
		}
		h(s, sess, w, r)
	}
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func (s *Server) entityChanged(r *http.Request, sess *session.Session, entity, op string, id int64) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogEntityChange(r.Context(), sess.UserID(), entity, op, id)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, &AppError{Code: CodeRateLimited, Message: "rate limit exceeded", StatusCode: http.StatusTooManyRequests})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"cached_sessions": s.sessions.cache.Size(),
	})
}
