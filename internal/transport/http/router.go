// Package httptransport exposes the operational surface: health probes,
// Prometheus metrics, and the authenticated replay endpoint. Business
// operations are consumed as a library, not over HTTP.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veris/internal/audit"
	"veris/internal/eventbus"
	"veris/pkg/platform/middleware/identity"
	"veris/pkg/platform/middleware/metadata"
	"veris/pkg/platform/middleware/requesttime"
	"veris/pkg/requestcontext"
)

// Pinger reports backing-store reachability for the readiness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler carries the dependencies the ops endpoints need.
type Handler struct {
	bus      *eventbus.Bus
	auditLog *audit.Log
	db       Pinger
	logger   *slog.Logger
}

func NewHandler(bus *eventbus.Bus, auditLog *audit.Log, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{bus: bus, auditLog: auditLog, db: db, logger: logger}
}

// NewRouter wires the ops endpoints. Replay is gated behind a verified token
// with the admin role; probes and metrics are open.
func NewRouter(h *Handler, verifier identity.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestIDToContext)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Use(identity.RequireActor(verifier, h.logger))
		r.Use(identity.RequireRole("admin"))
		r.Post("/replay", h.handleReplay)
	})

	return r
}

// requestIDToContext copies chi's request id into our context so audit rows
// pick it up.
func requestIDToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = requestcontext.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
