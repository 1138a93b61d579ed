package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/dutchsloot84/AgentOps-Mock/features/job"
	"github.com/dutchsloot84/AgentOps-Mock/internal/ingest"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

const (
	stageUnknown = "unknown"

	defaultTouchInterval = 30 * time.Second
)

type Runner interface {
	Run(ctx context.Context, docsDir string) (*ingest.Result, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, j *job.Job) error
}

// ReindexConsumer runs the upsert pipeline for every reindex request.
// Failed runs are recorded and acknowledged; a message is only requeued when
// the failure itself could not be stored.
type ReindexConsumer struct {
	runner     Runner
	failures   FailureRecorder
	defaultDir string
	timeout    time.Duration
	touchEvery time.Duration
}

func NewReindexConsumer(r Runner, f FailureRecorder, defaultDir string, timeout time.Duration) *ReindexConsumer {
	return &ReindexConsumer{
		runner:     r,
		failures:   f,
		defaultDir: defaultDir,
		timeout:    timeout,
		touchEvery: defaultTouchInterval,
	}
}

func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var req job.ReindexRequest
	err := json.Unmarshal(m.Body, &req)

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	runID := uuid.New().String()

	ctx := middleware.WithCorrelationID(context.Background(), correlationID)
	ctx = middleware.WithRunID(ctx, runID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid reindex message, dropping", "error", err)
		return nil
	}

	docsDir, err := job.DocsDirUnder(h.defaultDir, req.DocsDir)
	if err != nil {
		slog.ErrorContext(ctx, "reindex request outside docs directory, dropping", "error", err)
		return nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "reindex started", "docs_dir", docsDir, "retries", req.Retries)
	start := time.Now()

	stop := keepAlive(m, h.touchEvery)
	res, err := h.runner.Run(ctx, docsDir)
	stop()
	if err != nil {
		return h.recordFailure(ctx, runID, m.Body, req.Retries, err)
	}

	if res.NoOp {
		slog.WarnContext(ctx, "reindex found nothing to index", "docs_dir", docsDir, "reason", res.Reason)
		return nil
	}

	slog.InfoContext(ctx, "reindex finished",
		"index", res.Index,
		"endpoint", res.Endpoint,
		"count", res.Count,
		"dim", res.Dim,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (h *ReindexConsumer) recordFailure(ctx context.Context, runID string, payload []byte, retries int, runErr error) error {
	stage := stageUnknown
	var se *ingest.StageError
	if errors.As(runErr, &se) {
		stage = string(se.Stage)
	}

	slog.ErrorContext(ctx, "reindex failed", "stage", stage, "error", runErr)

	// Record outlives the run's deadline.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := h.failures.Record(recCtx, &job.Job{
		RunID:   runID,
		Stage:   stage,
		Payload: json.RawMessage(payload),
		Error:   runErr.Error(),
		Retries: retries,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record failed run, requeueing", "error", err)
		return err
	}
	return nil
}

// keepAlive touches m until stop is called so nsqd does not time out a run
// that outlasts the message timeout.
func keepAlive(m *nsq.Message, every time.Duration) (stop func()) {
	if m.Delegate == nil || every <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				m.Touch()
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
