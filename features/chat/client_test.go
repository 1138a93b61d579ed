package chat_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/features/chat"
	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/tasks/list", r.URL.Path)
		assert.Equal(t, "corr-1", r.Header.Get("X-Correlation-ID"))
		w.Write([]byte(`[{"id":"T-0001"}]`))
	}))
	defer ts.Close()

	c := chat.NewClient("tasks", ts.URL+"/tasks/", time.Second)
	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")

	resp, err := c.Get(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `[{"id":"T-0001"}]`, string(resp.Body))
}

func TestClient_Post(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p chat.FNOLPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "ABC", p.ExternalRef)
		w.Write([]byte(`{"id":"12-34-567890","status":"OPEN"}`))
	}))
	defer ts.Close()

	c := chat.NewClient("claims", ts.URL, time.Second)
	resp, err := c.Post(context.Background(), "fnol", chat.FNOLPayload{ExternalRef: "ABC", Docs: 1})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "12-34-567890")
}

func TestClient_PostWithoutPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Equal(t, "/complete/T-0001", r.URL.Path)
		w.Write([]byte(`{"id":"T-0001","status":"done"}`))
	}))
	defer ts.Close()

	c := chat.NewClient("tasks", ts.URL, time.Second)
	_, err := c.Post(context.Background(), "complete/T-0001", nil)
	require.NoError(t, err)
}

func TestClient_PassesErrorStatusThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found"}`))
	}))
	defer ts.Close()

	resp, err := chat.NewClient("claims", ts.URL, time.Second).Get(context.Background(), "claim/x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.JSONEq(t, `{"detail":"Not found"}`, string(resp.Body))
}

func TestClient_Errors(t *testing.T) {
	t.Run("Not configured", func(t *testing.T) {
		_, err := chat.NewClient("tasks", "", time.Second).Get(context.Background(), "list")
		assert.ErrorIs(t, err, chat.ErrUpstreamNotConfigured)
	})

	t.Run("Non-JSON body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>oops</html>"))
		}))
		defer ts.Close()

		_, err := chat.NewClient("tasks", ts.URL, time.Second).Get(context.Background(), "list")
		assert.ErrorIs(t, err, chat.ErrUpstream)
	})

	t.Run("Connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		_, err := chat.NewClient("tasks", url, time.Second).Get(context.Background(), "list")
		assert.ErrorIs(t, err, chat.ErrUpstream)
	})

	t.Run("Timeout", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		_, err := chat.NewClient("tasks", ts.URL, 20*time.Millisecond).Get(context.Background(), "list")
		assert.ErrorIs(t, err, chat.ErrUpstream)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
