package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

// ContextResult is one retrieved passage. Title, ChunkIx and Text are nil
// when the neighbor has no catalog entry; the result is still returned.
type ContextResult struct {
	DatapointID string  `json:"datapoint_id"`
	Distance    float64 `json:"distance"`
	Title       *string `json:"title"`
	ChunkIx     *int    `json:"chunk_ix"`
	Text        *string `json:"text"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, dim int) (*vector.Endpoint, string, error)
}

type NeighborFinder interface {
	FindNeighbors(ctx context.Context, ep *vector.Endpoint, deployedID string, query []float32, k int) ([]vector.Neighbor, error)
}

type CatalogLoader interface {
	Load() (catalog.Catalog, error)
}

type Service struct {
	embedder Embedder
	resolver EndpointResolver
	finder   NeighborFinder
	catalog  CatalogLoader
	logger   *QueryLogger
	topK     int
	timeout  time.Duration
}

func NewService(e Embedder, r EndpointResolver, f NeighborFinder, c CatalogLoader, l *QueryLogger, topK int, timeout time.Duration) *Service {
	return &Service{embedder: e, resolver: r, finder: f, catalog: c, logger: l, topK: topK, timeout: timeout}
}

// SearchTopK returns up to k passages nearest to query, in the order the
// vector service ranked them. k <= 0 uses the configured default.
func (s *Service) SearchTopK(ctx context.Context, query string, k int) ([]ContextResult, error) {
	start := time.Now()
	var results []ContextResult
	var err error

	if k <= 0 {
		k = s.topK
	}

	defer func() {
		if s.logger == nil {
			return
		}
		entry := QueryLogEntry{
			CorrelationID: middleware.GetCorrelationID(ctx),
			Query:         query,
			K:             k,
			Results:       len(results),
			Latency:       time.Since(start),
		}
		for _, r := range results {
			entry.Datapoints = append(entry.Datapoints, r.DatapointID)
		}
		if err != nil {
			entry.Error = err.Error()
		}
		s.logger.Log(entry)
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err = s.search(ctx, query, k)
	return results, err
}

func (s *Service) search(ctx context.Context, query string, k int) ([]ContextResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ep, deployedID, err := s.resolver.ResolveEndpoint(ctx, len(vec))
	if err != nil {
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	neighbors, err := s.finder.FindNeighbors(ctx, ep, deployedID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("find neighbors: %w", err)
	}

	// Read fresh on every call so a concurrent upsert shows up without a
	// restart.
	cat, err := s.catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return Join(neighbors, cat), nil
}

// Join attaches catalog entries to neighbors without reordering or
// dropping any of them.
func Join(neighbors []vector.Neighbor, cat catalog.Catalog) []ContextResult {
	out := make([]ContextResult, 0, len(neighbors))
	for _, n := range neighbors {
		r := ContextResult{DatapointID: n.ID, Distance: n.Distance}
		if e, ok := cat[n.ID]; ok {
			r.Title = &e.Title
			r.ChunkIx = &e.ChunkIx
			r.Text = &e.Text
		}
		out = append(out, r)
	}
	return out
}
