package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	ProviderVertex = "vertex"
	ProviderGemini = "gemini"

	BackendVertex   = "vertex"
	BackendWeaviate = "weaviate"
)

type Config struct {
	// Google Cloud
	ProjectID string `envconfig:"PROJECT_ID"`
	Location  string `envconfig:"LOCATION" default:"us-central1"`

	// Embeddings
	EmbedProvider    string  `envconfig:"EMBED_PROVIDER" default:"vertex"`
	EmbedModel       string  `envconfig:"EMBED_MODEL" default:"text-embedding-004"`
	GeminiAPIKey     string  `envconfig:"GEMINI_API_KEY"`
	GeminiEmbedModel string  `envconfig:"GEMINI_EMBED_MODEL" default:"text-embedding-004"`
	EmbedDim         int     `envconfig:"EMBED_DIM" default:"0"`
	EmbedBatchSize   int     `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	EmbedConcurrency int     `envconfig:"EMBED_CONCURRENCY" default:"1"`
	EmbedRatePerSec  float64 `envconfig:"EMBED_RATE_PER_SEC" default:"5"`
	EmbedRetries     int     `envconfig:"EMBED_RETRIES" default:"3"`

	// Vector search
	VectorBackend       string        `envconfig:"VECTOR_BACKEND" default:"vertex"`
	IndexDisplayName    string        `envconfig:"INDEX_DISPLAY_NAME" default:"agentops-mock-index"`
	IndexNameWithDim    bool          `envconfig:"INDEX_NAME_WITH_DIM" default:"true"`
	EndpointDisplayName string        `envconfig:"ENDPOINT_DISPLAY_NAME" default:"agentops-mock-endpoint"`
	DeployedIndexID     string        `envconfig:"DEPLOYED_INDEX_ID" default:"agentops_deployed"`
	DeploySettle        time.Duration `envconfig:"DEPLOY_SETTLE" default:"15s"`
	OperationTimeout    time.Duration `envconfig:"OPERATION_TIMEOUT" default:"45m"`
	UpsertBatchSize     int           `envconfig:"UPSERT_BATCH_SIZE" default:"100"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8081"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Corpus
	DocsDir       string   `envconfig:"DOCS_DIR" default:"mocks/data/docs"`
	DocExtensions []string `envconfig:"DOC_EXTENSIONS" default:".md,.txt"`
	CatalogPath   string   `envconfig:"CATALOG_PATH" default:".artifacts/catalog.json"`
	ChunkSize     int      `envconfig:"CHUNK_SIZE" default:"1100"`
	ChunkOverlap  int      `envconfig:"CHUNK_OVERLAP" default:"150"`

	// Query
	TopK         int           `envconfig:"TOP_K" default:"5"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" default:"10s"`
	QueryLogPath string        `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Server
	ServerPort int    `envconfig:"SERVER_PORT" default:"8080"`
	StaticDir  string `envconfig:"STATIC_DIR" default:"ui"`

	// Mock upstreams
	TasksBase       string        `envconfig:"TASKS_MCP_BASE"`
	ClaimsBase      string        `envconfig:"CLAIMS_MCP_BASE"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	MocksPort       int           `envconfig:"MOCKS_PORT" default:"8090"`
	SeedTasks       string        `envconfig:"SEED_TASKS" default:"mocks/data/seed_tasks.json"`

	// Reindex worker
	EnableReindex bool   `envconfig:"ENABLE_REINDEX" default:"false"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"agentops"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"agentops"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if c.DocsDir == "" {
		return fmt.Errorf("%w: DOCS_DIR", ErrMissingRequired)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("%w: CATALOG_PATH", ErrMissingRequired)
	}
	if c.ChunkOverlap < 0 || c.ChunkSize <= c.ChunkOverlap {
		return fmt.Errorf("%w: CHUNK_SIZE (%d) must exceed CHUNK_OVERLAP (%d) >= 0", ErrInvalid, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: TOP_K must be positive", ErrInvalid)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: EMBED_BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.EmbedDim < 0 {
		return fmt.Errorf("%w: EMBED_DIM must not be negative", ErrInvalid)
	}
	return nil
}

// ValidateRetrieval checks the settings needed to reach the embedding and
// vector search services. Commands that never touch them (mocks) skip it.
func (c *Config) ValidateRetrieval() error {
	switch c.EmbedProvider {
	case ProviderVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("%w: PROJECT_ID", ErrMissingRequired)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
		// The Gemini client has no output dimensionality setting.
		if c.EmbedDim != 0 {
			return fmt.Errorf("%w: EMBED_DIM must be 0 with EMBED_PROVIDER=gemini", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: EMBED_PROVIDER %q", ErrInvalid, c.EmbedProvider)
	}

	switch c.VectorBackend {
	case BackendVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("%w: PROJECT_ID", ErrMissingRequired)
		}
	case BackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalid, c.VectorBackend)
	}
	return nil
}

// ValidateReindex checks the settings needed by the reindex worker and the
// failed run store.
func (c *Config) ValidateReindex() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.NSQDHost == "" {
		return fmt.Errorf("%w: NSQD_HOST", ErrMissingRequired)
	}
	return nil
}
