package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

// EndpointClass holds one object per serving endpoint. Weaviate has no
// endpoint concept; deployments are bookkeeping so the same manager can
// drive both backends.
const EndpointClass = "ServingEndpoint"

// namespace for name-based object IDs.
var namespace = uuid.MustParse("6f1c1d0e-7a52-4c57-9c0e-3f7f7b1f2a10")

// IndexService implements vector.Service on a Weaviate instance. Each index
// is a class without a vectorizer; vectors are supplied on write.
type IndexService struct {
	client    Client
	batchSize int
}

var _ vector.Service = (*IndexService)(nil)

func NewIndexService(client Client, batchSize int) *IndexService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IndexService{client: client, batchSize: batchSize}
}

// ClassName maps a display name onto a valid Weaviate class name:
// "agentops-mock-index-768" becomes "AgentopsMockIndex768".
func ClassName(displayName string) string {
	parts := strings.FieldsFunc(displayName, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	name := b.String()
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		name = "Index" + name
	}
	return name
}

func (s *IndexService) FindIndex(ctx context.Context, displayName string) (*vector.Index, error) {
	class := ClassName(displayName)
	exists, err := s.client.ClassExists(ctx, class)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &vector.Index{Name: class, DisplayName: displayName}, nil
}

func (s *IndexService) CreateIndex(ctx context.Context, spec vector.IndexSpec) (*vector.Index, error) {
	class := ClassName(spec.DisplayName)
	err := s.client.CreateClass(ctx, &models.Class{
		Class:           class,
		Description:     spec.DisplayName,
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": distanceName(spec.Distance),
		},
		Properties: []*models.Property{
			{Name: "vectorId", DataType: []string{"text"}},
		},
	})
	if err != nil {
		return nil, conflictOr(err)
	}
	slog.InfoContext(ctx, "weaviate class created", "class", class)
	return &vector.Index{Name: class, DisplayName: spec.DisplayName, Dimension: spec.Dimension}, nil
}

func (s *IndexService) FindEndpoint(ctx context.Context, displayName string) (*vector.Endpoint, error) {
	exists, err := s.client.ClassExists(ctx, EndpointClass)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	obj, err := s.client.GetObject(ctx, EndpointClass, endpointID(displayName))
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	props, _ := obj.Properties.(map[string]interface{})
	ep := &vector.Endpoint{Name: endpointID(displayName), DisplayName: displayName}
	if raw, ok := props["deployments"].(string); ok && raw != "" {
		var deps []deployment
		if err := json.Unmarshal([]byte(raw), &deps); err != nil {
			return nil, fmt.Errorf("decode deployments of %s: %w", displayName, err)
		}
		for _, d := range deps {
			ep.Deployments = append(ep.Deployments, vector.Deployment{ID: d.ID, IndexName: d.Index})
		}
	}
	return ep, nil
}

func (s *IndexService) CreateEndpoint(ctx context.Context, spec vector.EndpointSpec) (*vector.Endpoint, error) {
	if err := s.ensureEndpointClass(ctx); err != nil {
		return nil, err
	}
	id := endpointID(spec.DisplayName)
	err := s.client.PutObject(ctx, EndpointClass, id, map[string]interface{}{
		"displayName": spec.DisplayName,
		"deployments": "[]",
	})
	if err != nil {
		return nil, err
	}
	return &vector.Endpoint{Name: id, DisplayName: spec.DisplayName}, nil
}

func (s *IndexService) DeployIndex(ctx context.Context, ep *vector.Endpoint, idx *vector.Index, deployedID string) error {
	current, err := s.FindEndpoint(ctx, ep.DisplayName)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %q", vector.ErrEndpointNotFound, ep.DisplayName)
	}

	deps := make([]deployment, 0, len(current.Deployments)+1)
	for _, d := range current.Deployments {
		if d.ID == deployedID {
			return fmt.Errorf("%w: deployed index %q", vector.ErrConflict, deployedID)
		}
		deps = append(deps, deployment{ID: d.ID, Index: d.IndexName})
	}
	deps = append(deps, deployment{ID: deployedID, Index: idx.Name})

	raw, err := json.Marshal(deps)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, EndpointClass, ep.Name, map[string]interface{}{
		"displayName": ep.DisplayName,
		"deployments": string(raw),
	})
}

func (s *IndexService) Upsert(ctx context.Context, idx *vector.Index, points []vector.Datapoint) error {
	for start := 0; start < len(points); start += s.batchSize {
		end := min(len(points), start+s.batchSize)
		objs := make([]*models.Object, 0, end-start)
		for _, p := range points[start:end] {
			objs = append(objs, &models.Object{
				Class:      idx.Name,
				ID:         objectID(DatapointUUID(p.ID)),
				Properties: map[string]interface{}{"vectorId": p.ID},
				Vector:     p.Vector,
			})
		}
		if err := s.client.BatchObjects(ctx, objs); err != nil {
			return fmt.Errorf("batch upsert [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (s *IndexService) FindNeighbors(ctx context.Context, ep *vector.Endpoint, deployedID string, query []float32, k int) ([]vector.Neighbor, error) {
	var class string
	for _, d := range ep.Deployments {
		if d.ID == deployedID {
			class = d.IndexName
		}
	}
	if class == "" {
		return nil, fmt.Errorf("%w: %q on %q", vector.ErrNoDeployment, deployedID, ep.DisplayName)
	}

	fields := []graphql.Field{
		{Name: "vectorId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	rows, err := s.client.NearVector(ctx, class, query, k, fields)
	if err != nil {
		return nil, err
	}

	out := make([]vector.Neighbor, 0, len(rows))
	for _, row := range rows {
		n := vector.Neighbor{}
		if id, ok := row["vectorId"].(string); ok {
			n.ID = id
		}
		if additional, ok := row["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				n.Distance = d
			}
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *IndexService) ensureEndpointClass(ctx context.Context) error {
	exists, err := s.client.ClassExists(ctx, EndpointClass)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.client.CreateClass(ctx, &models.Class{
		Class:       EndpointClass,
		Description: "Serving endpoints and their deployed indexes",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "displayName", DataType: []string{"text"}},
			{Name: "deployments", DataType: []string{"text"}},
		},
	})
	if err != nil && !errors.Is(conflictOr(err), vector.ErrConflict) {
		return err
	}
	return nil
}

type deployment struct {
	ID    string `json:"id"`
	Index string `json:"index"`
}

// DatapointUUID derives the object UUID of a vector ID.
func DatapointUUID(id string) string {
	return uuid.NewSHA1(namespace, []byte(id)).String()
}

func endpointID(displayName string) string {
	return uuid.NewSHA1(namespace, []byte("endpoint/"+displayName)).String()
}

func distanceName(d string) string {
	switch d {
	case vector.DistanceCosine, "":
		return "cosine"
	case "DOT_PRODUCT_DISTANCE":
		return "dot"
	case "SQUARED_L2_DISTANCE":
		return "l2-squared"
	default:
		return strings.ToLower(d)
	}
}

func conflictOr(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("%w: %w", vector.ErrConflict, err)
	}
	return err
}
