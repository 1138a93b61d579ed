package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		DocsDir:        "mocks/data/docs",
		CatalogPath:    "catalog.json",
		ChunkSize:      1100,
		ChunkOverlap:   150,
		TopK:           5,
		EmbedBatchSize: 16,
		EmbedProvider:  "openai",
		VectorBackend:  config.BackendWeaviate,
	}
}

func runCLI(t *testing.T, load func() (*config.Config, error), args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, slog.New(slog.NewTextHandler(io.Discard, nil)), load)
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_UpsertConfigFailure(t *testing.T) {
	out, err := runCLI(t, func() (*config.Config, error) { return testConfig(), nil }, "upsert")

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)

	var got failure
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.OK)
	assert.Equal(t, "config", got.Stage)
	assert.Contains(t, got.Error, "EMBED_PROVIDER")
}

func TestCLI_SearchRequiresQuery(t *testing.T) {
	_, err := runCLI(t, func() (*config.Config, error) { return testConfig(), nil }, "search")
	require.Error(t, err)

	var ee *exitError
	assert.False(t, errors.As(err, &ee))
}

func TestCLI_SearchConfigFailure(t *testing.T) {
	out, err := runCLI(t, func() (*config.Config, error) { return testConfig(), nil }, "search", "claim", "status", "-k", "3")

	var ee *exitError
	require.True(t, errors.As(err, &ee))

	var got failure
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "config", got.Stage)
}

func TestCLI_ConfigLoadError(t *testing.T) {
	for _, sub := range []string{"upsert", "serve"} {
		t.Run(sub, func(t *testing.T) {
			out, err := runCLI(t, func() (*config.Config, error) { return nil, config.ErrMissingRequired }, sub)

			var ee *exitError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, 1, ee.code)

			var got failure
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.False(t, got.OK)
			assert.Equal(t, "config", got.Stage)
			assert.Contains(t, got.Error, "missing required configuration")
		})
	}
}

func TestCLI_MocksMissingSeed(t *testing.T) {
	cfg := testConfig()
	cfg.SeedTasks = "does-not-exist.json"
	_, err := runCLI(t, func() (*config.Config, error) { return cfg, nil }, "mocks")
	assert.Error(t, err)
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
}
