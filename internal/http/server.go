// Package http exposes the JSON API: household members, billing cycles, the
// transaction ledger, and the ingestion endpoints (CSV import, bank sync).
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"dispensa/internal/log"
	"dispensa/internal/metrics"
	"dispensa/internal/middleware/trace"
	"dispensa/internal/services"
)

type Server struct {
	http.Server
	people *services.PeopleService
	cycles *services.CycleService
	ledger *services.LedgerService

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, people *services.PeopleService, cycles *services.CycleService, ledger *services.LedgerService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		people:      people,
		cycles:      cycles,
		ledger:      ledger,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/people", s.handleListPeople)
	mux.HandleFunc("POST /api/people", s.handleCreatePerson)
	mux.HandleFunc("PATCH /api/people/{id}", s.handleRenamePerson)
	mux.HandleFunc("DELETE /api/people/{id}", s.handleDeactivatePerson)

	mux.HandleFunc("GET /api/cycles", s.handleListCycles)
	mux.HandleFunc("POST /api/cycles", s.handleCreateCycle)
	mux.HandleFunc("GET /api/cycles/{month}", s.handleCycleDetail)
	mux.HandleFunc("POST /api/cycles/{month}/finalize", s.handleFinalizeCycle)
	mux.HandleFunc("POST /api/cycles/{month}/unfinalize", s.handleUnfinalizeCycle)
	mux.HandleFunc("PUT /api/cycles/{month}/consumption", s.handleSetConsumption)
	mux.HandleFunc("GET /api/cycles/{month}/bill", s.handleCycleBill)
	mux.HandleFunc("POST /api/cycles/{month}/export", s.handleExportBill)

	mux.HandleFunc("GET /api/cycles/{month}/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/cycles/{month}/transactions", s.handleAddTransaction)
	mux.HandleFunc("PATCH /api/cycles/{month}/transactions/{id}", s.handleSetVerified)
	mux.HandleFunc("DELETE /api/cycles/{month}/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/cycles/{month}/import/csv", s.handleImportCSV)
	mux.HandleFunc("POST /api/cycles/{month}/sync", s.handleSyncBank)

	mux.HandleFunc("POST /api/cycles/{month}/payments", s.handleAddPayment)
	mux.HandleFunc("DELETE /api/cycles/{month}/payments/{id}", s.handleDeletePayment)

	tracer := trace.NewMiddleware(clientIP)
	httpLogger := log.NewLogger(slog.Default(), log.ComponentHTTP)
	s.Server = http.Server{
		Addr:    addr,
		Handler: tracer.Middleware(log.Middleware(httpLogger)(s.withGuard(mux))),
	}
	return s
}

// withGuard adds response headers and rate-limits mutating requests per
// client IP.
func (s *Server) withGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP(r)) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP extracts the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
