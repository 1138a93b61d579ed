package config_test

import (
	"errors"
	"testing"

	"github.com/dutchsloot84/AgentOps-Mock/internal/config"

	"github.com/stretchr/testify/assert"
)

func validConfig() config.Config {
	return config.Config{
		DocsDir:        "docs",
		CatalogPath:    "catalog.json",
		ChunkSize:      1100,
		ChunkOverlap:   150,
		TopK:           5,
		EmbedBatchSize: 16,
		EmbedProvider:  config.ProviderVertex,
		VectorBackend:  config.BackendVertex,
		ProjectID:      "demo",
		WeaviateHost:   "localhost:8081",
		DBHost:         "localhost",
		DBUser:         "user",
		DBName:         "db",
		NSQDHost:       "localhost:4150",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:    "Valid Config",
			mutate:  func(c *config.Config) {},
			wantErr: false,
		},
		{
			name:    "Missing DocsDir",
			mutate:  func(c *config.Config) { c.DocsDir = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing CatalogPath",
			mutate:  func(c *config.Config) { c.CatalogPath = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Overlap equals size",
			mutate:  func(c *config.Config) { c.ChunkOverlap = c.ChunkSize },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Negative overlap",
			mutate:  func(c *config.Config) { c.ChunkOverlap = -1 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Zero TopK",
			mutate:  func(c *config.Config) { c.TopK = 0 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Zero batch size",
			mutate:  func(c *config.Config) { c.EmbedBatchSize = 0 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRetrieval(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errIs  error
	}{
		{"Vertex ok", func(c *config.Config) {}, nil},
		{"Vertex without project", func(c *config.Config) { c.ProjectID = "" }, config.ErrMissingRequired},
		{"Gemini without key", func(c *config.Config) {
			c.EmbedProvider = config.ProviderGemini
		}, config.ErrMissingRequired},
		{"Gemini with weaviate", func(c *config.Config) {
			c.EmbedProvider = config.ProviderGemini
			c.GeminiAPIKey = "key"
			c.VectorBackend = config.BackendWeaviate
			c.ProjectID = ""
		}, nil},
		{"Gemini with fixed dimension", func(c *config.Config) {
			c.EmbedProvider = config.ProviderGemini
			c.GeminiAPIKey = "key"
			c.EmbedDim = 256
		}, config.ErrInvalid},
		{"Weaviate without host", func(c *config.Config) {
			c.VectorBackend = config.BackendWeaviate
			c.WeaviateHost = ""
		}, config.ErrMissingRequired},
		{"Unknown provider", func(c *config.Config) { c.EmbedProvider = "openai" }, config.ErrInvalid},
		{"Unknown backend", func(c *config.Config) { c.VectorBackend = "qdrant" }, config.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.ValidateRetrieval()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}

func TestConfig_ValidateReindex(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.ValidateReindex())

	cfg.DBHost = ""
	assert.ErrorIs(t, cfg.ValidateReindex(), config.ErrMissingRequired)

	cfg = validConfig()
	cfg.NSQDHost = ""
	assert.ErrorIs(t, cfg.ValidateReindex(), config.ErrMissingRequired)
}
