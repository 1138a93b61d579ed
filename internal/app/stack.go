package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dutchsloot84/AgentOps-Mock/internal/adapter/gemini"
	"github.com/dutchsloot84/AgentOps-Mock/internal/adapter/vertex"
	wstore "github.com/dutchsloot84/AgentOps-Mock/internal/adapter/weaviate"
	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	"github.com/dutchsloot84/AgentOps-Mock/internal/embed"
	"github.com/dutchsloot84/AgentOps-Mock/internal/ingest"
	"github.com/dutchsloot84/AgentOps-Mock/internal/retrieval"
	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

// Stack is the retrieval side of the application: embedding, vector
// service, catalog and the two pipelines built on them.
type Stack struct {
	Batcher  *embed.Batcher
	Manager  *vector.Manager
	Catalog  *catalog.Store
	Pipeline *ingest.Pipeline
	Search   *retrieval.Service

	closers []func() error
}

// NewStack wires the pipelines around an embedding client and a vector
// service. queryLog may be nil to skip query logging.
func NewStack(cfg *config.Config, client embed.Client, svc vector.Service, queryLog *retrieval.QueryLogger) *Stack {
	batcher := embed.NewBatcher(client, embed.Options{
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
		RatePerSec:  cfg.EmbedRatePerSec,
	})

	manager := vector.NewManager(svc, vector.ManagerConfig{
		IndexDisplayName:    cfg.IndexDisplayName,
		IndexNameWithDim:    cfg.IndexNameWithDim,
		EndpointDisplayName: cfg.EndpointDisplayName,
		DeployedIndexID:     cfg.DeployedIndexID,
		DeploySettle:        cfg.DeploySettle,
	})

	store := catalog.NewStore(cfg.CatalogPath)

	pipeline := ingest.NewPipeline(batcher, manager, svc, store, ingest.Options{
		Extensions:      cfg.DocExtensions,
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		DimOverride:     cfg.EmbedDim,
		DeployedIndexID: cfg.DeployedIndexID,
		EmbedRetries:    cfg.EmbedRetries,
	})

	search := retrieval.NewService(batcher, manager, svc, store, queryLog, cfg.TopK, cfg.QueryTimeout)

	return &Stack{
		Batcher:  batcher,
		Manager:  manager,
		Catalog:  store,
		Pipeline: pipeline,
		Search:   search,
	}
}

// BuildStack connects to the configured embedding provider and vector
// backend and returns the wired stack. Call Close when done.
func BuildStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	if err := cfg.ValidateRetrieval(); err != nil {
		return nil, err
	}

	var closers []func() error

	client, closeClient, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeClient != nil {
		closers = append(closers, closeClient)
	}

	svc, err := newVectorService(ctx, cfg)
	if err != nil {
		runClosers(closers)
		return nil, err
	}

	queryLog, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath, nil)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stderr", "error", err)
		queryLog = retrieval.NewQueryLogger(os.Stderr)
	}

	s := NewStack(cfg, client, svc, queryLog)
	s.closers = append(closers, queryLog.Close)
	return s, nil
}

func (s *Stack) Close() error {
	return runClosers(s.closers)
}

func runClosers(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func vertexOptions(cfg *config.Config) vertex.Options {
	return vertex.Options{
		ProjectID:        cfg.ProjectID,
		Location:         cfg.Location,
		OperationTimeout: cfg.OperationTimeout,
		UpsertBatchSize:  cfg.UpsertBatchSize,
	}
}

func newEmbeddingClient(ctx context.Context, cfg *config.Config) (embed.Client, func() error, error) {
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbedModel)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	case config.ProviderVertex:
		e, err := vertex.NewEmbedder(ctx, vertexOptions(cfg), cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: EMBED_PROVIDER %q", config.ErrInvalid, cfg.EmbedProvider)
}

func newVectorService(ctx context.Context, cfg *config.Config) (vector.Service, error) {
	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		client, err := wstore.NewClient(cfg.WeaviateHost, cfg.WeaviateScheme)
		if err != nil {
			return nil, err
		}
		return wstore.NewIndexService(client, cfg.UpsertBatchSize), nil
	case config.BackendVertex:
		return vertex.NewIndexService(ctx, vertexOptions(cfg))
	}
	return nil, fmt.Errorf("%w: VECTOR_BACKEND %q", config.ErrInvalid, cfg.VectorBackend)
}
