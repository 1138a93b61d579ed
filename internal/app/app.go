package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/features/chat"
	"github.com/dutchsloot84/AgentOps-Mock/features/claims"
	"github.com/dutchsloot84/AgentOps-Mock/features/job"
	"github.com/dutchsloot84/AgentOps-Mock/features/mcp"
	"github.com/dutchsloot84/AgentOps-Mock/features/stats"
	"github.com/dutchsloot84/AgentOps-Mock/features/tasks"
	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

type App struct {
	Handler http.Handler
	Addr    string
}

// New builds the agent API. searcher may be nil when retrieval is not
// configured; jobs may be nil when the reindex flow is disabled, in which
// case its routes are not mounted.
func New(cfg *config.Config, searcher chat.Searcher, jobs *job.Service) *App {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.CORS(h))
	}

	tasksClient := chat.NewClient("tasks", cfg.TasksBase, cfg.UpstreamTimeout)
	claimsClient := chat.NewClient("claims", cfg.ClaimsBase, cfg.UpstreamTimeout)
	chatHandler := chat.NewHandler(tasksClient, claimsClient, searcher, cfg.TopK)

	mux.Handle("POST /chat", wrap(chatHandler.Chat))
	mux.Handle("OPTIONS /chat", wrap(chatHandler.Chat))

	var runs stats.RunCounter
	if jobs != nil {
		runs = jobs
		jobHandler := job.NewHandler(jobs)
		mux.Handle("POST /admin/reindex", wrap(jobHandler.Reindex))
		mux.Handle("GET /jobs/failed", wrap(jobHandler.List))
		mux.Handle("POST /jobs/{id}/retry", wrap(jobHandler.Retry))
	}

	cat := catalog.NewStore(cfg.CatalogPath)
	statsHandler := stats.NewHandler(cat, runs)
	mux.Handle("GET /stats", wrap(statsHandler.GetStats))

	mcpHandler := middleware.CorrelationID(middleware.CORS(mcp.NewServer(searcher, cat).Handler()))
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
		mux.Handle(method+" /mcp", mcpHandler)
	}

	mux.Handle("GET /health", wrap(health))

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
		}
	}

	return &App{Handler: mux, Addr: fmt.Sprintf(":%d", cfg.ServerPort)}
}

// NewMocks builds the mock tasks and claims services on one server, mounted
// under /tasks and /claims.
func NewMocks(cfg *config.Config) (*App, error) {
	seed, err := tasks.LoadSeed(cfg.SeedTasks)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	tasks.NewHandler(tasks.NewStore(seed)).Register(mux, "/tasks")
	claims.NewHandler(claims.NewStore()).Register(mux, "/claims")
	mux.HandleFunc("GET /health", health)

	return &App{
		Handler: middleware.CorrelationID(mux),
		Addr:    fmt.Sprintf(":%d", cfg.MocksPort),
	}, nil
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "addr", a.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
