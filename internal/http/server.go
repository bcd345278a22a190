// Package http exposes the tracker as a JSON API: transactions,
// recurring definitions, budget limits and monthly budget reports.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tally/internal/cache"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
	"tally/internal/store"
)

const (
	reportCacheSize = 256
	reportCacheTTL  = 30 * time.Second
)

// Server wires the services into HTTP routes
type Server struct {
	router *mux.Router
	logger *log.Logger

	store        store.Store
	transactions *services.TransactionService
	recurring    *services.RecurringService
	budgets      *services.BudgetService

	auth        *Authenticator
	reportCache *cache.LRUCache[services.BudgetReport]
	limiter     *ratelimit.Limiter
	resolver    *security.Resolver

	httpServer *http.Server
}

// NewServer assembles the API server with its middleware chain
func NewServer(
	cfg *config.Config,
	st store.Store,
	transactions *services.TransactionService,
	recurring *services.RecurringService,
	budgets *services.BudgetService,
	authenticator *Authenticator,
	logger *log.Logger,
	cacheManager *cache.Manager,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		logger:       logger.WithComponent(log.ComponentHTTP),
		store:        st,
		transactions: transactions,
		recurring:    recurring,
		budgets:      budgets,
		auth:         authenticator,
		reportCache:  cache.NewLRUCache[services.BudgetReport](reportCacheSize, reportCacheTTL),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		resolver:     security.NewResolver(),
	}
	if cacheManager != nil {
		cacheManager.Register(s.reportCache)
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.resolver.ClientIP)

	s.router.Use(headers.Middleware)
	s.router.Use(tracer.Middleware)
	s.router.Use(s.limiter.Middleware(s.resolver.ClientIP, nil))
	s.router.Use(log.Middleware(s.logger))

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id}/category", s.handleRetagTransaction).Methods(http.MethodPut)

	api.HandleFunc("/recurring", s.handleCreateRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring", s.handleListRecurring).Methods(http.MethodGet)
	api.HandleFunc("/recurring/check", s.handleCheckRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring/{id}/toggle", s.handleToggleRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring/{id}", s.handleDeleteRecurring).Methods(http.MethodDelete)

	api.HandleFunc("/budgets", s.handleUpsertBudget).Methods(http.MethodPut)
	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{category}", s.handleDeleteBudget).Methods(http.MethodDelete)

	api.HandleFunc("/reports/budget", s.handleBudgetReport).Methods(http.MethodGet)
}

// Handler returns the HTTP handler for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and blocks until the listener fails
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops background middleware
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// invalidateReports drops a user's cached reports after any write that
// could change a report.
func (s *Server) invalidateReports(userID string) {
	s.reportCache.DeletePrefix(userID + ":")
}
