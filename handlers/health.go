package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/app"
	"github.com/upb/rag-pipeline/config"
	"github.com/upb/rag-pipeline/utils"
)

// Version is reported by the status endpoint. Set at link time.
var Version = "0.1.0"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Documents *int              `json:"documents,omitempty"`
	Index     string            `json:"index,omitempty"`

	// StoredDocuments is the current row count of the documents table when
	// the corpus comes from Postgres.
	StoredDocuments *int `json:"stored_documents,omitempty"`
}

// HealthCheck is the liveness probe. It answers as soon as the server runs.
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessCheck reports whether the pipeline has been built and the
// configured database is reachable
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string)
		ready := true

		switch {
		case deps.Fence.Ready():
			checks["pipeline"] = "ready"
		case deps.Fence.Err() != nil:
			checks["pipeline"] = "failed"
			ready = false
		default:
			checks["pipeline"] = "building"
			ready = false
		}

		// Check database
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(ctx); err != nil {
				deps.Logger.Warn("database health check failed", zap.Error(err))
				checks["database"] = "unhealthy"
				ready = false
			} else {
				checks["database"] = "healthy"
			}
		}

		response := HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}
		if deps.Fence.Ready() {
			n := deps.Store.Len()
			response.Documents = &n
			response.Index = deps.Config.Retrieval.IndexKind
			if stored, ok := storedDocuments(ctx, deps, checks); ok {
				response.StoredDocuments = &stored
			}
		}

		status := http.StatusOK
		if !ready {
			response.Status = "not_ready"
			status = http.StatusServiceUnavailable
		}
		if err := utils.WriteJSON(w, status, response); err != nil {
			deps.Logger.Error("failed to write readiness response", zap.Error(err))
		}
	}
}

// storedDocuments counts the documents table behind a Postgres corpus. The
// index is not rebuilt, so a differing count only marks the corpus stale.
func storedDocuments(ctx context.Context, deps *app.Dependencies, checks map[string]string) (int, bool) {
	if deps.Config.Corpus.Source != config.CorpusSourcePostgres || deps.Documents == nil {
		return 0, false
	}
	n, err := deps.Documents.Count(ctx)
	if err != nil {
		deps.Logger.Warn("document count failed", zap.Error(err))
		checks["corpus"] = "unknown"
		return 0, false
	}
	if n != deps.Store.Len() {
		checks["corpus"] = "stale"
	} else {
		checks["corpus"] = "current"
	}
	return n, true
}

// StatusResponse describes the running service
type StatusResponse struct {
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	Ready       bool            `json:"ready"`
	Models      []app.ModelInfo `json:"models"`
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, StatusResponse{
			Version:     Version,
			Environment: deps.Config.Environment,
			Ready:       deps.Fence.Ready(),
			Models:      deps.Models.List(),
		})
	}
}
