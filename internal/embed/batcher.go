package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrEmbeddingService marks failures of the remote embedding service.
var ErrEmbeddingService = errors.New("embedding service error")

// Client issues a single embedding request for all of texts and returns one
// vector per text in the same order.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	BatchSize   int
	Concurrency int
	// RatePerSec limits request starts. Zero disables pacing.
	RatePerSec float64
}

// Batcher splits input into fixed-size requests against a Client and
// reassembles the vectors in input order. It does not retry.
type Batcher struct {
	client      Client
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
}

func NewBatcher(client Client, opts Options) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	b := &Batcher{client: client, batchSize: opts.BatchSize, concurrency: opts.Concurrency}
	if opts.RatePerSec > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Concurrency)
	}
	return b
}

// EmbedBatch embeds texts in batches of the configured size. The output has
// exactly len(texts) vectors and vector i belongs to texts[i].
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += b.batchSize {
		end := min(len(texts), start+b.batchSize)
		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			vecs, err := b.client.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, wrapService(err))
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: batch [%d:%d] returned %d vectors", ErrEmbeddingService, start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			slog.DebugContext(gctx, "embedded batch", "start", start, "size", end-start)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Embed embeds a single text.
func (b *Batcher) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func wrapService(err error) error {
	if errors.Is(err, ErrEmbeddingService) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingService, err)
}
