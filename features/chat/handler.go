package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	"github.com/dutchsloot84/AgentOps-Mock/internal/embed"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
	"github.com/dutchsloot84/AgentOps-Mock/internal/retrieval"
	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

const mockAnswer = "(mock) see contexts"

var ErrSearchUnavailable = errors.New("search is not configured")

type Upstream interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, payload interface{}) (*Response, error)
}

type Searcher interface {
	SearchTopK(ctx context.Context, query string, k int) ([]retrieval.ContextResult, error)
}

type Request struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Answer   string                    `json:"answer"`
	Contexts []retrieval.ContextResult `json:"contexts"`
}

type Handler struct {
	tasks    Upstream
	claims   Upstream
	searcher Searcher
	topK     int
}

// NewHandler wires the chat dispatcher. searcher may be nil, in which case
// free-text queries fail with a configuration error.
func NewHandler(tasks, claims Upstream, searcher Searcher, topK int) *Handler {
	return &Handler{tasks: tasks, claims: claims, searcher: searcher, topK: topK}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}

	cmd, err := Parse(req.Query)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	slog.InfoContext(ctx, "chat request", "target", cmd.Target, "path", cmd.Path, "correlationId", correlationID)

	switch cmd.Target {
	case TargetTasks:
		h.forward(ctx, w, h.tasks, cmd)
	case TargetClaims:
		h.forward(ctx, w, h.claims, cmd)
	default:
		h.search(ctx, w, req.Query)
	}
}

func (h *Handler) forward(ctx context.Context, w http.ResponseWriter, up Upstream, cmd Command) {
	var (
		resp *Response
		err  error
	)
	if cmd.Method == http.MethodPost {
		resp, err = up.Post(ctx, cmd.Path, cmd.Payload)
	} else {
		resp, err = up.Get(ctx, cmd.Path)
	}
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

func (h *Handler) search(ctx context.Context, w http.ResponseWriter, query string) {
	if h.searcher == nil {
		h.fail(ctx, w, ErrSearchUnavailable)
		return
	}

	contexts, err := h.searcher.SearchTopK(ctx, query, h.topK)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	if contexts == nil {
		contexts = []retrieval.ContextResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SearchResponse{Answer: mockAnswer, Contexts: contexts}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "chat request failed", "error", err, "code", code, "correlationId", middleware.GetCorrelationID(ctx))
	} else {
		slog.WarnContext(ctx, "chat request rejected", "error", err, "code", code)
	}
	h.writeError(ctx, w, code, err.Error(), status)
}

// Classify maps an error to the HTTP status and error code returned to
// chat clients.
func Classify(err error) (int, string) {
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.Is(err, ErrInvalidCommand):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, ErrUpstreamNotConfigured),
		errors.Is(err, ErrSearchUnavailable):
		return http.StatusInternalServerError, "CONFIGURATION_ERROR"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusInternalServerError, "CATALOG_NOT_FOUND"
	case errors.Is(err, vector.ErrEndpointNotFound), errors.Is(err, vector.ErrNoDeployment):
		return http.StatusInternalServerError, "ENDPOINT_NOT_FOUND"
	case errors.Is(err, embed.ErrEmbeddingService),
		errors.Is(err, ErrUpstream),
		errors.As(err, &gerr):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
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
