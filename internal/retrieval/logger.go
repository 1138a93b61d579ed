package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QueryLogEntry is one line of the query log.
type QueryLogEntry struct {
	At            time.Time     `json:"at"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Query         string        `json:"query"`
	K             int           `json:"k"`
	Results       int           `json:"results"`
	Datapoints    []string      `json:"datapoints,omitempty"`
	Latency       time.Duration `json:"-"`
	LatencyMs     int64         `json:"latency_ms"`
	Error         string        `json:"error,omitempty"`
}

// QueryLogger appends search records as JSON lines. Safe for concurrent use.
type QueryLogger struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &QueryLogger{enc: enc}
}

// NewFileQueryLogger appends to path, creating its directory. When mirror is
// not nil every line is copied there too.
func NewFileQueryLogger(path string, mirror io.Writer) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from QUERY_LOG_PATH
	if err != nil {
		return nil, err
	}

	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(mirror, f)
	}
	l := NewQueryLogger(w)
	l.closer = f
	return l, nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	entry.LatencyMs = entry.Latency.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		slog.Warn("failed to write query log entry", "error", err)
	}
}

// Close releases the log file, if any.
func (l *QueryLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
