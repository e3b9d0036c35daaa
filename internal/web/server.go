// Package web provides the HTTP server and JSON handlers for the
// ledger engine.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/omarelbidi/bankcore/internal/config"
	"github.com/omarelbidi/bankcore/internal/core"
	"github.com/omarelbidi/bankcore/internal/metrics"
	"github.com/omarelbidi/bankcore/internal/web/middleware"
)

// Server is the HTTP server exposing the Bank facade.
type Server struct {
	bank   *core.Bank
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

// NewServer wires the router, middleware, and routes over bank.
func NewServer(bank *core.Bank, cfg *config.Config) *Server {
	s := &Server{
		bank:   bank,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Customer lifecycle
		r.Post("/customers", s.handleRegisterCustomer)
		r.Get("/customers", s.handleGetCustomers)
		r.Put("/customers/{customerID}", s.handleUpdateCustomer)
		r.Get("/customers/{customerID}/accounts", s.handleGetAccounts)
		r.Get("/customers/{customerID}/balance", s.handleGetTotalBalance)

		// Account lifecycle
		r.Post("/accounts/personal", s.handleRegisterPersonalAccount)
		r.Post("/accounts/corporate", s.handleRegisterCorporateAccount)
		r.Delete("/accounts/{accountID}", s.handleRemoveAccount)
		r.Get("/accounts/{accountID}/balance", s.handleGetBalance)

		// Balance mutations
		r.Post("/accounts/{accountID}/deposit", s.handleDeposit)
		r.Post("/accounts/{accountID}/withdraw", s.handleWithdraw)
		r.Post("/transfers", s.handleTransfer)

		// Reporting
		r.Get("/accounts/{accountID}/transactions", s.handleTransactionHistory)
		r.Get("/accounts/{accountID}/statement", s.handleStatement)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
