package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

type Handler struct {
	store *Store
}

func NewHandler(s *Store) *Handler {
	return &Handler{store: s}
}

// Register mounts the task routes under prefix, e.g. "/tasks".
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/list", h.List)
	mux.HandleFunc("POST "+prefix+"/add", h.Add)
	mux.HandleFunc("POST "+prefix+"/complete/{id}", h.Complete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.store.List())
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Title string `json:"title"`
		Due   string `json:"due"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(ctx, w, "VALIDATION_ERROR", "title is required", http.StatusBadRequest)
		return
	}

	t := h.store.Add(req.Title, req.Due)
	slog.InfoContext(ctx, "task added", "id", t.ID)
	writeJSON(ctx, w, http.StatusOK, t)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	t, err := h.store.Complete(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(ctx, w, "NOT_FOUND", "Task not found", http.StatusNotFound)
			return
		}
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	slog.InfoContext(ctx, "task completed", "id", id)
	writeJSON(ctx, w, http.StatusOK, t)
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
