// Package v0 provides the REST API handlers for triggering sync runs and
// polling their progress.
package v0

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/sync"
)

// triggerBodyLimit caps how much of a trigger payload is read. The body is
// accepted and logged but its fields are not acted on.
const triggerBodyLimit = 64 * 1024

// SyncStatusResponse is the response of the status endpoint
type SyncStatusResponse struct {
	IsSyncing         bool              `json:"isSyncing"`
	OverallPercentage int               `json:"overallPercentage"`
	SyncStatus        *status.RunReport `json:"syncStatus"`
	LastSync          *time.Time        `json:"lastSync"`
}

// SyncConflictResponse is returned when a trigger races an active run
type SyncConflictResponse struct {
	Message         string            `json:"message"`
	CurrentProgress *status.RunReport `json:"currentProgress"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the sync API with dependency injection
type Routes struct {
	orchestrator *sync.Orchestrator
	tracker      *status.Tracker
}

// NewRoutes creates a new Routes instance
func NewRoutes(orch *sync.Orchestrator, tracker *status.Tracker) *Routes {
	return &Routes{
		orchestrator: orch,
		tracker:      tracker,
	}
}

// Router creates a new router for the sync API
func Router(orch *sync.Orchestrator, tracker *status.Tracker) http.Handler {
	routes := NewRoutes(orch, tracker)

	r := chi.NewRouter()
	r.Post("/sync", routes.triggerSync)
	r.Get("/sync/status", routes.getSyncStatus)

	return r
}

// triggerSync handles POST /api/v0/sync. The call is synchronous: it
// blocks until the run finishes and returns the final RunReport. A
// concurrent run yields 409 with the live report.
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	if body, err := io.ReadAll(io.LimitReader(r.Body, triggerBodyLimit)); err == nil && len(body) > 0 {
		slog.Debug("Sync trigger received with payload", "bytes", len(body))
	}

	report, err := rr.orchestrator.Run(r.Context())
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		rr.writeJSONResponse(w, http.StatusConflict, SyncConflictResponse{
			Message:         "Sync already in progress",
			CurrentProgress: report,
		})
	case err != nil:
		slog.Error("Sync run failed", "error", err)
		rr.writeJSONResponse(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
		})
	default:
		rr.writeJSONResponse(w, http.StatusOK, report)
	}
}

// getSyncStatus handles GET /api/v0/sync/status. It never blocks and never
// fails due to run state; before the first run it returns an empty report.
func (rr *Routes) getSyncStatus(w http.ResponseWriter, _ *http.Request) {
	report, running := rr.tracker.Snapshot()

	rr.writeJSONResponse(w, http.StatusOK, SyncStatusResponse{
		IsSyncing:         running,
		OverallPercentage: report.OverallPercentage(),
		SyncStatus:        report,
		LastSync:          rr.tracker.LastSync(),
	})
}

func (*Routes) writeJSONResponse(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(prober *sync.Prober) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(prober))

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler reports readiness based on store connectivity. The
// daemon is ready as long as at least one store answers; a degraded run
// mode is handled by the orchestrator, not the health check.
func readinessHandler(prober *sync.Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn := prober.Probe(r.Context())
		if !conn.Online && !conn.Offline {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
