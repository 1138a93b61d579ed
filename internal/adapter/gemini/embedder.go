package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder calls the Gemini API batch embedding method with an API key.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder builds a client that makes exactly one request per Embed call.
// The generated client retries 503 responses on its own, so those are
// surfaced as a StatusError before it can see them and retry policy stays
// with the caller.
func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	hc := &http.Client{Transport: &singleAttempt{apiKey: apiKey, base: http.DefaultTransport}}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey), option.WithHTTPClient(hc)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Embedder{client: client, model: model}, nil
}

// Embed sends texts as a single batch request. The response holds one
// embedding per text in request order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", "gemini", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "provider", "gemini", "error", err)
		return nil, err
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

// StatusError is a server-side failure returned by the embedding API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.Code, e.Body)
}

// singleAttempt authenticates requests with the API key and turns 5xx
// responses into transport errors, which the generated client does not
// retry.
type singleAttempt struct {
	apiKey string
	base   http.RoundTripper
}

func (t *singleAttempt) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
