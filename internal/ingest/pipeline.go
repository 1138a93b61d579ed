package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/embed"
	"github.com/dutchsloot84/AgentOps-Mock/internal/text"
	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type Stage string

const (
	StageLoad         Stage = "load"
	StageChunk        Stage = "chunk"
	StageEmbed        Stage = "embed"
	StageIndex        Stage = "index"
	StageDeploy       Stage = "deploy"
	StageUpsert       Stage = "upsert"
	StageCatalogWrite Stage = "catalog-write"
)

// StageError reports which step of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a run. NoOp runs found nothing to index and made
// no external calls.
type Result struct {
	OK              bool   `json:"ok"`
	Index           string `json:"index,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	DeployedIndexID string `json:"deployed_index_id,omitempty"`
	Count           int    `json:"count"`
	Dim             int    `json:"dim"`
	NoOp            bool   `json:"noop,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type IndexManager interface {
	IndexDisplayName(dim int) string
	EnsureIndex(ctx context.Context, dim int, displayName string) (*vector.Index, error)
	EnsureEndpoint(ctx context.Context) (*vector.Endpoint, error)
	EnsureDeployed(ctx context.Context, idx *vector.Index, ep *vector.Endpoint, base string) (string, error)
}

type Upserter interface {
	Upsert(ctx context.Context, idx *vector.Index, points []vector.Datapoint) error
}

type CatalogWriter interface {
	Merge(entries catalog.Catalog) error
}

type Options struct {
	Extensions   []string
	ChunkSize    int
	ChunkOverlap int
	// DimOverride, when positive, must equal the embedding dimension.
	DimOverride     int
	DeployedIndexID string
	EmbedRetries    int
	RetryInterval   time.Duration
}

type Pipeline struct {
	embedder Embedder
	manager  IndexManager
	upserter Upserter
	catalog  CatalogWriter
	opts     Options
}

func NewPipeline(e Embedder, m IndexManager, u Upserter, c CatalogWriter, opts Options) *Pipeline {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	return &Pipeline{embedder: e, manager: m, upserter: u, catalog: c, opts: opts}
}

// Run indexes every document in docsDir: chunk, embed, make sure the index
// is created and served, upsert, then record the chunks in the catalog. The
// catalog is only written after the upsert succeeded.
func (p *Pipeline) Run(ctx context.Context, docsDir string) (*Result, error) {
	start := time.Now()

	docs, err := text.LoadDocs(docsDir, p.opts.Extensions)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}

	chunks, err := text.NewChunker(p.opts.ChunkSize, p.opts.ChunkOverlap).SplitAll(docs)
	if err != nil {
		return nil, &StageError{Stage: StageChunk, Err: err}
	}
	slog.InfoContext(ctx, "documents chunked", "docs", len(docs), "chunks", len(chunks))

	if len(chunks) == 0 {
		return &Result{OK: false, NoOp: true, Reason: "no docs/chunks"}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.embed(ctx, texts)
	if err != nil {
		return nil, &StageError{Stage: StageEmbed, Err: err}
	}

	dim, err := p.dimension(vecs)
	if err != nil {
		return nil, &StageError{Stage: StageEmbed, Err: err}
	}

	idx, err := p.manager.EnsureIndex(ctx, dim, p.manager.IndexDisplayName(dim))
	if err != nil {
		return nil, &StageError{Stage: StageIndex, Err: err}
	}
	ep, err := p.manager.EnsureEndpoint(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageDeploy, Err: err}
	}
	deployedID, err := p.manager.EnsureDeployed(ctx, idx, ep, p.opts.DeployedIndexID)
	if err != nil {
		return nil, &StageError{Stage: StageDeploy, Err: err}
	}

	points := make([]vector.Datapoint, len(chunks))
	entries := make(catalog.Catalog, len(chunks))
	for i, c := range chunks {
		id := c.ID()
		points[i] = vector.Datapoint{ID: id, Vector: vecs[i]}
		entries[id] = catalog.Entry{Title: c.SourceTitle, ChunkIx: c.Index, Text: c.Text}
	}

	if err := p.upserter.Upsert(ctx, idx, points); err != nil {
		return nil, &StageError{Stage: StageUpsert, Err: err}
	}
	if err := p.catalog.Merge(entries); err != nil {
		return nil, &StageError{Stage: StageCatalogWrite, Err: err}
	}

	slog.InfoContext(ctx, "upsert complete",
		"index", idx.Name,
		"endpoint", ep.Name,
		"count", len(points),
		"dim", dim,
		"duration", time.Since(start),
	)

	return &Result{
		OK:              true,
		Index:           idx.Name,
		Endpoint:        ep.Name,
		DeployedIndexID: deployedID,
		Count:           len(points),
		Dim:             dim,
	}, nil
}

// embed retries transport failures of the embedding service with
// exponential backoff. Other errors fail immediately.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.RetryInterval
	b.MaxElapsedTime = 0

	var vecs [][]float32
	op := func() error {
		var err error
		vecs, err = p.embedder.EmbedBatch(ctx, texts)
		if err != nil && !errors.Is(err, embed.ErrEmbeddingService) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		slog.WarnContext(ctx, "embedding failed, retrying", "error", err, "retry_in", d)
	}

	retries := max(0, p.opts.EmbedRetries)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (p *Pipeline) dimension(vecs [][]float32) (int, error) {
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d values, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	if p.opts.DimOverride > 0 && p.opts.DimOverride != dim {
		return 0, fmt.Errorf("%w: model returned %d, EMBED_DIM is %d", ErrDimensionMismatch, dim, p.opts.DimOverride)
	}
	return dim, nil
}
