package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"

	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

const (
	leafNodeEmbeddingCount    = 1000
	leafNodesToSearchPercent  = 7
	approximateNeighborsCount = 10
)

// IndexService implements vector.Service on Vertex AI Vector Search.
type IndexService struct {
	svc  *aiplatform.Service
	opts Options

	mu     sync.Mutex
	public map[string]*aiplatform.Service
	// publicBaseURL maps a public endpoint domain to the API base URL that
	// serves its queries.
	publicBaseURL func(domain string) string
}

var _ vector.Service = (*IndexService)(nil)

func NewIndexService(ctx context.Context, opts Options) (*IndexService, error) {
	svc, err := newService(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = 100
	}
	return &IndexService{
		svc:    svc,
		opts:   opts,
		public: make(map[string]*aiplatform.Service),
		publicBaseURL: func(domain string) string {
			return "https://" + domain + "/"
		},
	}, nil
}

func (s *IndexService) FindIndex(ctx context.Context, displayName string) (*vector.Index, error) {
	var matches []*aiplatform.GoogleCloudAiplatformV1Index
	err := s.svc.Projects.Locations.Indexes.List(s.opts.parent()).Pages(ctx, func(page *aiplatform.GoogleCloudAiplatformV1ListIndexesResponse) error {
		for _, idx := range page.Indexes {
			if idx.DisplayName == displayName {
				matches = append(matches, idx)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	chosen := matches[0]
	if len(matches) > 1 {
		slog.WarnContext(ctx, "multiple indexes share display name", "display_name", displayName, "count", len(matches))
		for _, m := range matches {
			if _, ok := m.Labels[vector.LabelConfig]; ok {
				chosen = m
				break
			}
		}
	}
	return toIndex(chosen), nil
}

func (s *IndexService) CreateIndex(ctx context.Context, spec vector.IndexSpec) (*vector.Index, error) {
	req := &aiplatform.GoogleCloudAiplatformV1Index{
		DisplayName:       spec.DisplayName,
		Description:       "agentops retrieval corpus",
		IndexUpdateMethod: "STREAM_UPDATE",
		Labels:            spec.Labels,
		Metadata: map[string]any{
			"config": map[string]any{
				"dimensions":                spec.Dimension,
				"approximateNeighborsCount": approximateNeighborsCount,
				"distanceMeasureType":       spec.Distance,
				"algorithmConfig": map[string]any{
					"treeAhConfig": map[string]any{
						"leafNodeEmbeddingCount":   leafNodeEmbeddingCount,
						"leafNodesToSearchPercent": leafNodesToSearchPercent,
					},
				},
			},
		},
	}

	op, err := s.svc.Projects.Locations.Indexes.Create(s.opts.parent(), req).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	slog.InfoContext(ctx, "index creation started", "operation", op.Name)

	op, err = waitOperation(ctx, s.svc, op, s.opts)
	if err != nil {
		return nil, err
	}

	var created aiplatform.GoogleCloudAiplatformV1Index
	if err := decodeResponse(op, &created); err != nil {
		return nil, fmt.Errorf("decode created index: %w", err)
	}
	if created.Name == "" {
		return s.FindIndex(ctx, spec.DisplayName)
	}
	idx := toIndex(&created)
	if idx.Dimension == 0 {
		idx.Dimension = spec.Dimension
	}
	return idx, nil
}

func (s *IndexService) FindEndpoint(ctx context.Context, displayName string) (*vector.Endpoint, error) {
	var found *aiplatform.GoogleCloudAiplatformV1IndexEndpoint
	err := s.svc.Projects.Locations.IndexEndpoints.List(s.opts.parent()).Pages(ctx, func(page *aiplatform.GoogleCloudAiplatformV1ListIndexEndpointsResponse) error {
		for _, ep := range page.IndexEndpoints {
			if ep.DisplayName == displayName && found == nil {
				found = ep
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list index endpoints: %w", err)
	}
	if found == nil {
		return nil, nil
	}
	return toEndpoint(found), nil
}

func (s *IndexService) CreateEndpoint(ctx context.Context, spec vector.EndpointSpec) (*vector.Endpoint, error) {
	req := &aiplatform.GoogleCloudAiplatformV1IndexEndpoint{
		DisplayName:           spec.DisplayName,
		Description:           "agentops retrieval endpoint",
		PublicEndpointEnabled: spec.Public,
		Labels:                spec.Labels,
	}

	op, err := s.svc.Projects.Locations.IndexEndpoints.Create(s.opts.parent(), req).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	op, err = waitOperation(ctx, s.svc, op, s.opts)
	if err != nil {
		return nil, err
	}

	var created aiplatform.GoogleCloudAiplatformV1IndexEndpoint
	if err := decodeResponse(op, &created); err != nil {
		return nil, fmt.Errorf("decode created endpoint: %w", err)
	}
	if created.Name == "" {
		return s.FindEndpoint(ctx, spec.DisplayName)
	}
	return toEndpoint(&created), nil
}

func (s *IndexService) DeployIndex(ctx context.Context, ep *vector.Endpoint, idx *vector.Index, deployedID string) error {
	req := &aiplatform.GoogleCloudAiplatformV1DeployIndexRequest{
		DeployedIndex: &aiplatform.GoogleCloudAiplatformV1DeployedIndex{
			Id:          deployedID,
			Index:       idx.Name,
			DisplayName: idx.DisplayName,
		},
	}

	op, err := s.svc.Projects.Locations.IndexEndpoints.DeployIndex(ep.Name, req).Context(ctx).Do()
	if err != nil {
		return mapError(err)
	}
	slog.InfoContext(ctx, "index deployment started", "operation", op.Name, "deployed_index_id", deployedID)

	_, err = waitOperation(ctx, s.svc, op, s.opts)
	return err
}

func (s *IndexService) Upsert(ctx context.Context, idx *vector.Index, points []vector.Datapoint) error {
	for start := 0; start < len(points); start += s.opts.UpsertBatchSize {
		end := min(len(points), start+s.opts.UpsertBatchSize)

		dps := make([]*aiplatform.GoogleCloudAiplatformV1IndexDatapoint, 0, end-start)
		for _, p := range points[start:end] {
			dps = append(dps, &aiplatform.GoogleCloudAiplatformV1IndexDatapoint{
				DatapointId:   p.ID,
				FeatureVector: toFloat64(p.Vector),
			})
		}

		req := &aiplatform.GoogleCloudAiplatformV1UpsertDatapointsRequest{Datapoints: dps}
		if _, err := s.svc.Projects.Locations.Indexes.UpsertDatapoints(idx.Name, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("upsert datapoints [%d:%d]: %w", start, end, err)
		}
		slog.DebugContext(ctx, "upserted datapoints", "index", idx.Name, "count", end-start)
	}
	return nil
}

func (s *IndexService) FindNeighbors(ctx context.Context, ep *vector.Endpoint, deployedID string, query []float32, k int) ([]vector.Neighbor, error) {
	svc, err := s.queryService(ctx, ep)
	if err != nil {
		return nil, err
	}

	req := &aiplatform.GoogleCloudAiplatformV1FindNeighborsRequest{
		DeployedIndexId: deployedID,
		Queries: []*aiplatform.GoogleCloudAiplatformV1FindNeighborsRequestQuery{{
			Datapoint:     &aiplatform.GoogleCloudAiplatformV1IndexDatapoint{FeatureVector: toFloat64(query)},
			NeighborCount: int64(k),
		}},
	}

	res, err := svc.Projects.Locations.IndexEndpoints.FindNeighbors(ep.Name, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("find neighbors: %w", err)
	}
	if len(res.NearestNeighbors) == 0 {
		return nil, nil
	}

	var out []vector.Neighbor
	for _, n := range res.NearestNeighbors[0].Neighbors {
		if n.Datapoint == nil {
			continue
		}
		out = append(out, vector.Neighbor{ID: n.Datapoint.DatapointId, Distance: n.Distance})
	}
	return out, nil
}

// queryService returns the client for an endpoint's query traffic. Public
// endpoints answer on their own domain, not the regional API host.
func (s *IndexService) queryService(ctx context.Context, ep *vector.Endpoint) (*aiplatform.Service, error) {
	if ep.PublicDomain == "" {
		return s.svc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.public[ep.PublicDomain]; ok {
		return svc, nil
	}
	opts := append(append([]option.ClientOption{}, s.opts.ClientOptions...), option.WithEndpoint(s.publicBaseURL(ep.PublicDomain)))
	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aiplatform public endpoint client: %w", err)
	}
	s.public[ep.PublicDomain] = svc
	return svc, nil
}

type indexMetadata struct {
	Config struct {
		Dimensions int `json:"dimensions"`
	} `json:"config"`
}

func toIndex(idx *aiplatform.GoogleCloudAiplatformV1Index) *vector.Index {
	out := &vector.Index{
		Name:        idx.Name,
		DisplayName: idx.DisplayName,
		Labels:      idx.Labels,
	}
	if idx.Metadata != nil {
		if b, err := json.Marshal(idx.Metadata); err == nil {
			var md indexMetadata
			if json.Unmarshal(b, &md) == nil {
				out.Dimension = md.Config.Dimensions
			}
		}
	}
	return out
}

func toEndpoint(ep *aiplatform.GoogleCloudAiplatformV1IndexEndpoint) *vector.Endpoint {
	out := &vector.Endpoint{
		Name:         ep.Name,
		DisplayName:  ep.DisplayName,
		PublicDomain: strings.TrimSuffix(ep.PublicEndpointDomainName, "/"),
	}
	for _, d := range ep.DeployedIndexes {
		out.Deployments = append(out.Deployments, vector.Deployment{ID: d.Id, IndexName: d.Index})
	}
	return out
}
