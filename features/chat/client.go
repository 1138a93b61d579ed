package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dutchsloot84/AgentOps-Mock/internal/middleware"
)

var (
	ErrUpstreamNotConfigured = errors.New("upstream base URL not configured")
	ErrUpstream              = errors.New("upstream request failed")
)

// Response is an upstream reply, passed back to the caller unchanged.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Client calls one of the mock MCP services.
type Client struct {
	name string
	base string
	http *http.Client
}

func NewClient(name, base string, timeout time.Duration) *Client {
	return &Client{
		name: name,
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post sends payload as JSON. A nil payload sends an empty body.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*Response, error) {
	if c.base == "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamNotConfigured, c.name)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", c.name, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, c.name, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, c.name, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUpstream, c.name, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: %s returned non-JSON body (status %d)", ErrUpstream, c.name, resp.StatusCode)
	}

	return &Response{Status: resp.StatusCode, Body: raw}, nil
}
