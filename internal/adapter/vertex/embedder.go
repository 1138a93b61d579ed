package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/api/aiplatform/v1"
)

// Embedder calls a Vertex AI publisher text embedding model.
type Embedder struct {
	svc   *aiplatform.Service
	model string
	// dim requests a reduced output dimensionality when positive.
	dim int
}

func NewEmbedder(ctx context.Context, opts Options, model string, dim int) (*Embedder, error) {
	svc, err := newService(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		svc:   svc,
		model: fmt.Sprintf("%s/publishers/google/models/%s", opts.parent(), model),
		dim:   dim,
	}, nil
}

type prediction struct {
	Embeddings struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed sends one predict request with an instance per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", "vertex", "model", e.model, "count", len(texts))

	instances := make([]any, 0, len(texts))
	for _, t := range texts {
		instances = append(instances, map[string]any{"content": t})
	}
	params := map[string]any{"autoTruncate": true}
	if e.dim > 0 {
		params["outputDimensionality"] = e.dim
	}

	res, err := e.svc.Projects.Locations.Publishers.Models.Predict(e.model, &aiplatform.GoogleCloudAiplatformV1PredictRequest{
		Instances:  instances,
		Parameters: params,
	}).Context(ctx).Do()
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "provider", "vertex", "error", err)
		return nil, err
	}

	out := make([][]float32, 0, len(res.Predictions))
	for i, raw := range res.Predictions {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode prediction %d: %w", i, err)
		}
		var p prediction
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("decode prediction %d: %w", i, err)
		}
		if len(p.Embeddings.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		out = append(out, p.Embeddings.Values)
	}
	return out, nil
}
