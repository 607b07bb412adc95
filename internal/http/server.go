// Package http exposes the JSON API. Every /api route is namespaced by the
// X-User-ID header; authentication itself is handled upstream.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finanze/internal/cache"
	"finanze/internal/export"
	applog "finanze/internal/log"
	"finanze/internal/services"
	"finanze/internal/store"
)

type Server struct {
	http.Server

	profiles     *services.ProfileService
	sessions     *services.SessionService
	transactions *services.TransactionService
	budgets      *services.BudgetService
	goals        *services.GoalService
	exporter     *export.Service
	store        store.Store

	rateLimiter *rateLimiter

	// Insights responses are cached per user and month. Mutations bump the
	// user's generation counter instead of chasing individual keys; stale
	// generations age out through the cache TTL.
	insightsCache *cache.LRUCache[insightsResponse]
	cacheManager  *cache.Manager
	generations   sync.Map // userID -> *atomic.Int64

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// cacheSize and cacheTTL bound the insights cache.
func NewServer(addr string, st store.Store, publisher services.EventPublisher, cacheSize int, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	httpLogger := applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(httpLogger)(mux),
		},
		profiles:      services.NewProfileService(st),
		sessions:      services.NewSessionService(st, publisher),
		transactions:  services.NewTransactionService(st),
		budgets:       services.NewBudgetService(st),
		goals:         services.NewGoalService(st),
		exporter:      export.NewService(st),
		store:         st,
		rateLimiter:   newRateLimiter(),
		insightsCache: cache.NewLRUCache[insightsResponse](cacheSize, cacheTTL),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.insightsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	s.route(mux, "PUT /api/profile", s.handleEnsureProfile)
	s.route(mux, "GET /api/profile", s.handleGetProfile)
	s.route(mux, "POST /api/profile/categories", s.handleAddCategory)

	s.route(mux, "POST /api/sessions", s.handleCreateSession)
	s.route(mux, "GET /api/sessions", s.handleListSessions)
	s.route(mux, "GET /api/sessions/{id}", s.handleGetSession)
	s.route(mux, "POST /api/sessions/{id}/items", s.handleAddItem)
	s.route(mux, "GET /api/sessions/{id}/items", s.handleListItems)
	s.route(mux, "DELETE /api/sessions/{id}/items/{itemID}", s.handleDeleteItem)
	s.route(mux, "POST /api/sessions/{id}/summary", s.handleSaveSummary)
	s.route(mux, "POST /api/sessions/{id}/convert", s.handleConvertSession)

	s.route(mux, "POST /api/transactions", s.handleCreateTransaction)
	s.route(mux, "GET /api/transactions/{monthKey}", s.handleListTransactions)
	s.route(mux, "PATCH /api/transactions/id/{id}", s.handleUpdateTransaction)
	s.route(mux, "DELETE /api/transactions/id/{id}", s.handleDeleteTransaction)

	s.route(mux, "PUT /api/budgets", s.handleUpsertBudget)
	s.route(mux, "GET /api/budgets/{monthKey}", s.handleListBudgets)

	s.route(mux, "POST /api/goals", s.handleCreateGoal)
	s.route(mux, "GET /api/goals", s.handleListGoals)
	s.route(mux, "PATCH /api/goals/{id}", s.handleUpdateGoal)
	s.route(mux, "DELETE /api/goals/{id}", s.handleDeleteGoal)
	s.route(mux, "POST /api/goals/{id}/deposit", s.handleDeposit)

	s.route(mux, "GET /api/insights/{monthKey}", s.handleInsights)
	s.route(mux, "GET /api/export/{monthKey}", s.handleExportMonth)

	return s
}

// route registers a "METHOD /pattern" handler wrapped in the middleware
// chain. The pattern doubles as the metrics label.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, s.withMiddleware(pattern, h))
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// withMiddleware adds request IDs, logging, security headers, per-IP rate
// limiting on mutating methods and the X-User-ID requirement.
func (s *Server) withMiddleware(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if userID(r) == "" {
			writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "X-User-ID header required"})
		} else {
			next(rw, r)
		}

		duration := time.Since(start)
		observeRequest(r.Method, pattern, rw.statusCode, duration)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generation returns the current insights cache generation for a user.
func (s *Server) generation(uid string) int64 {
	v, _ := s.generations.LoadOrStore(uid, new(atomic.Int64))
	return v.(*atomic.Int64).Load()
}

// invalidateInsights bumps the user's generation so subsequent insight
// reads miss the cache and recompute.
func (s *Server) invalidateInsights(uid string) {
	v, _ := s.generations.LoadOrStore(uid, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (s *Server) insightsCacheKey(uid, monthKey string) string {
	return fmt.Sprintf("%s|%d|%s", uid, s.generation(uid), monthKey)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
