package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

type CatalogLoader interface {
	Load() (catalog.Catalog, error)
}

type RunCounter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	catalog CatalogLoader
	runs    RunCounter
}

// NewHandler reports corpus and reindex health. runs may be nil when the
// reindex flow is disabled.
func NewHandler(c CatalogLoader, runs RunCounter) *Handler {
	return &Handler{catalog: c, runs: runs}
}

type StatsResponse struct {
	CatalogEntries int  `json:"catalog_entries"`
	FailedRuns     *int `json:"failed_runs,omitempty"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	var resp StatsResponse

	cat, err := h.catalog.Load()
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		// Nothing indexed yet.
	case err != nil:
		slog.ErrorContext(ctx, "failed to load catalog", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to load catalog", http.StatusInternalServerError)
		return
	default:
		resp.CatalogEntries = len(cat)
	}

	if h.runs != nil {
		n, err := h.runs.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count runs", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed runs", http.StatusInternalServerError)
			return
		}
		resp.FailedRuns = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
