// Package mcp exposes retrieval to agent runtimes as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/retrieval"
)

const (
	Version = "1.0.0"

	ToolSearch        = "agentops_search"
	ToolListDocuments = "agentops_list_documents"

	maxLimit = 50
)

var (
	ErrSearchUnavailable = errors.New("mcp: search is not configured")
	ErrInvalidArguments  = errors.New("mcp: invalid arguments")
)

type Searcher interface {
	SearchTopK(ctx context.Context, query string, k int) ([]retrieval.ContextResult, error)
}

type CatalogLoader interface {
	Load() (catalog.Catalog, error)
}

type Server struct {
	searcher Searcher
	catalog  CatalogLoader
	server   *mcp.Server
}

// NewServer registers the tool set. searcher may be nil, in which case
// search calls fail with ErrSearchUnavailable.
func NewServer(s Searcher, c CatalogLoader) *Server {
	srv := &Server{
		searcher: s,
		catalog:  c,
		server:   mcp.NewServer(&mcp.Implementation{Name: "agentops", Version: Version}, nil),
	}

	mcp.AddTool(srv.server, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Vector search over the indexed policy and claims documents. Returns the nearest passages with distance, title and text.",
	}, srv.handleSearch)

	mcp.AddTool(srv.server, &mcp.Tool{
		Name:        ToolListDocuments,
		Description: "Lists the indexed documents and how many chunks each contributed.",
	}, srv.handleListDocuments)

	return srv
}

// Handler serves the tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (defaults to TOP_K, at most 50)"`
}

type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one passage. Title and Text are empty when the
// neighbor has no catalog entry.
type SearchResultOutput struct {
	DatapointID string  `json:"datapoint_id"`
	Distance    float64 `json:"distance"`
	Title       string  `json:"title,omitempty"`
	ChunkIx     *int    `json:"chunk_ix,omitempty"`
	Text        string  `json:"text,omitempty"`
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}
	if input.Limit < 0 || input.Limit > maxLimit {
		return nil, SearchOutput{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArguments, maxLimit)
	}
	if s.searcher == nil {
		return nil, SearchOutput{}, ErrSearchUnavailable
	}

	results, err := s.searcher.SearchTopK(ctx, input.Query, input.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "tool", ToolSearch, "error", err)
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		res := SearchResultOutput{
			DatapointID: r.DatapointID,
			Distance:    r.Distance,
			ChunkIx:     r.ChunkIx,
		}
		if r.Title != nil {
			res.Title = *r.Title
		}
		if r.Text != nil {
			res.Text = *r.Text
		}
		out.Results[i] = res
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", ToolSearch, "result_count", out.Count)
	return nil, out, nil
}

type ListDocumentsInput struct{}

type DocumentOutput struct {
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	out := ListDocumentsOutput{Documents: []DocumentOutput{}}

	cat, err := s.catalog.Load()
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, out, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "list documents failed", "error", err)
		return nil, out, err
	}

	counts := make(map[string]int)
	for _, e := range cat {
		counts[e.Title]++
	}
	for title, n := range counts {
		out.Documents = append(out.Documents, DocumentOutput{Title: title, Chunks: n})
	}
	sort.Slice(out.Documents, func(i, j int) bool { return out.Documents[i].Title < out.Documents[j].Title })

	return nil, out, nil
}
