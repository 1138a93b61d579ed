package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrInvalidDocsDir is returned for a requested docs directory that would
// leave the configured one.
var ErrInvalidDocsDir = errors.New("docs_dir must be a relative path inside the docs directory")

// Job is a reindex run that failed and can be retried.
type Job struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Stage     string          `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReindexRequest is the message body published on the reindex topic.
// DocsDir names a subdirectory of the worker's configured docs directory.
type ReindexRequest struct {
	DocsDir       string `json:"docs_dir,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Retries       int    `json:"retries,omitempty"`
}

// DocsDirUnder resolves requested against root. An empty request selects
// root itself; absolute paths and paths climbing out of root are rejected.
func DocsDirUnder(root, requested string) (string, error) {
	if requested == "" {
		return root, nil
	}
	if !filepath.IsLocal(requested) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocsDir, requested)
	}
	return filepath.Join(root, requested), nil
}
