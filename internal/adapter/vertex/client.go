// Package vertex talks to Vertex AI through the generated REST client:
// Vector Search indexes and endpoints, and publisher embedding models.
package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

// grpc status code for ALREADY_EXISTS as carried in operation errors.
const codeAlreadyExists = 6

var errOperationPending = errors.New("operation not done")

type Options struct {
	ProjectID string
	Location  string
	// ClientOptions are appended after the regional endpoint, so tests can
	// point the client elsewhere.
	ClientOptions    []option.ClientOption
	PollInterval     time.Duration
	OperationTimeout time.Duration
	UpsertBatchSize  int
}

func (o Options) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", o.ProjectID, o.Location)
}

// RegionalEndpoint is the API host for a Vertex AI location.
func RegionalEndpoint(location string) string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/", location)
}

func newService(ctx context.Context, opts Options) (*aiplatform.Service, error) {
	clientOpts := append([]option.ClientOption{option.WithEndpoint(RegionalEndpoint(opts.Location))}, opts.ClientOptions...)
	svc, err := aiplatform.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("aiplatform client: %w", err)
	}
	return svc, nil
}

// waitOperation polls a long-running operation until it finishes, the
// configured timeout elapses or ctx is done.
func waitOperation(ctx context.Context, svc *aiplatform.Service, op *aiplatform.GoogleLongrunningOperation, opts Options) (*aiplatform.GoogleLongrunningOperation, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.PollInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 5 * time.Second
	}
	b.MaxInterval = 30 * time.Second
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = opts.OperationTimeout

	current := op
	poll := func() error {
		if current.Done {
			if current.Error != nil {
				return backoff.Permanent(statusError(current.Error))
			}
			return nil
		}
		next, err := svc.Projects.Locations.Operations.Get(current.Name).Context(ctx).Do()
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("get operation %s: %w", current.Name, err))
		}
		current = next
		if !current.Done {
			return errOperationPending
		}
		if current.Error != nil {
			return backoff.Permanent(statusError(current.Error))
		}
		return nil
	}

	notify := func(err error, d time.Duration) {
		slog.DebugContext(ctx, "waiting for operation", "operation", current.Name, "next_poll", d)
	}
	if err := backoff.RetryNotify(poll, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, errOperationPending) {
			return nil, fmt.Errorf("operation %s did not finish within %s", current.Name, opts.OperationTimeout)
		}
		return nil, err
	}
	return current, nil
}

func statusError(s *aiplatform.GoogleRpcStatus) error {
	err := fmt.Errorf("operation failed (code %d): %s", s.Code, s.Message)
	if s.Code == codeAlreadyExists || strings.Contains(strings.ToLower(s.Message), "already exist") {
		return fmt.Errorf("%w: %w", vector.ErrConflict, err)
	}
	return err
}

// mapError classifies API errors so callers can match vector.ErrConflict.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusConflict || strings.Contains(strings.ToLower(gerr.Message), "already exist") {
			return fmt.Errorf("%w: %w", vector.ErrConflict, err)
		}
	}
	return err
}

func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return false
}

// decodeResponse unpacks the resource embedded in a finished operation.
func decodeResponse(op *aiplatform.GoogleLongrunningOperation, into any) error {
	if len(op.Response) == 0 {
		return nil
	}
	return json.Unmarshal(op.Response, into)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
