package claims

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

type Handler struct {
	store *Store
	now   func() time.Time
}

func NewHandler(s *Store) *Handler {
	return &Handler{store: s, now: time.Now}
}

// Register mounts the claim routes under prefix, e.g. "/claims". Both
// /claims/{id} and /claim/{id} resolve a claim.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/status", h.Status)
	mux.HandleFunc("GET "+prefix+"/claims/{id}", h.Get)
	mux.HandleFunc("GET "+prefix+"/claim/{id}", h.Get)
	mux.HandleFunc("POST "+prefix+"/fnol", h.CreateFNOL)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"ts": h.now().Unix(),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(ctx, w, "NOT_FOUND", "Claim not found", http.StatusNotFound)
			return
		}
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, http.StatusOK, c)
}

func (h *Handler) CreateFNOL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var f FNOL
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(f.ExternalRef) == "" {
		writeError(ctx, w, "VALIDATION_ERROR", "external_ref is required", http.StatusBadRequest)
		return
	}
	if f.Docs < 0 {
		writeError(ctx, w, "VALIDATION_ERROR", "docs must not be negative", http.StatusBadRequest)
		return
	}

	c := h.store.Create(f)
	slog.InfoContext(ctx, "fnol created", "id", c.ID, "external_ref", f.ExternalRef)
	writeJSON(ctx, w, http.StatusOK, c)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
