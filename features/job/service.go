package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

const publishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	logger *slog.Logger
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (s *Service) List(ctx context.Context, stage string) ([]Job, error) {
	return s.repo.List(ctx, stage)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Enqueue publishes a reindex request for docsDir, a subdirectory of the
// worker's docs directory. An empty docsDir reindexes all of it.
func (s *Service) Enqueue(ctx context.Context, docsDir string) (*ReindexRequest, error) {
	if _, err := DocsDirUnder("", docsDir); err != nil {
		return nil, err
	}
	req := &ReindexRequest{
		DocsDir:       docsDir,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal reindex request: %w", err)
	}
	if err := s.publish(ctx, body); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "reindex requested", "docs_dir", docsDir)
	return req, nil
}

// Record stores a failed run so it can be listed and retried later.
func (s *Service) Record(ctx context.Context, j *Job) error {
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save failed run: %w", err)
	}
	return nil
}

// Retry republishes the stored payload of a failed run and removes the row.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	body := []byte(j.Payload)
	var req ReindexRequest
	if err := json.Unmarshal(j.Payload, &req); err == nil {
		req.Retries = j.Retries + 1
		if cid := middleware.GetCorrelationID(ctx); cid != "" {
			req.CorrelationID = cid
		}
		if b, err := json.Marshal(req); err == nil {
			body = b
		}
	}

	if err := s.publish(ctx, body); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "failed run republished", "id", id, "run_id", j.RunID)

	return s.repo.Delete(ctx, id)
}

func (s *Service) publish(ctx context.Context, body []byte) error {
	if s.pub == nil {
		return fmt.Errorf("publish reindex request: no publisher configured")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicReindex, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish reindex request: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish reindex request: timed out after %s", publishTimeout)
	}
}
