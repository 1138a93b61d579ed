package app_test

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

// wordEmbedder maps text onto a small vector of keyword counts so related
// passages land close together.
type wordEmbedder struct {
	keywords []string
}

func (e *wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(e.keywords)+1)
		for j, k := range e.keywords {
			v[j] = float32(strings.Count(lower, k))
		}
		v[len(e.keywords)] = 0.1
		out[i] = v
	}
	return out, nil
}

// memService is an in-memory vector.Service.
type memService struct {
	mu        sync.Mutex
	indexes   map[string]*vector.Index
	endpoints map[string]*vector.Endpoint
	points    map[string]map[string][]float32
}

func newMemService() *memService {
	return &memService{
		indexes:   map[string]*vector.Index{},
		endpoints: map[string]*vector.Endpoint{},
		points:    map[string]map[string][]float32{},
	}
}

func (s *memService) FindIndex(ctx context.Context, displayName string) (*vector.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexes[displayName], nil
}

func (s *memService) CreateIndex(ctx context.Context, spec vector.IndexSpec) (*vector.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := &vector.Index{Name: "indexes/" + spec.DisplayName, DisplayName: spec.DisplayName, Dimension: spec.Dimension, Labels: spec.Labels}
	s.indexes[spec.DisplayName] = idx
	s.points[idx.Name] = map[string][]float32{}
	return idx, nil
}

func (s *memService) FindEndpoint(ctx context.Context, displayName string) (*vector.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[displayName]
	if !ok {
		return nil, nil
	}
	cp := *ep
	cp.Deployments = append([]vector.Deployment(nil), ep.Deployments...)
	return &cp, nil
}

func (s *memService) CreateEndpoint(ctx context.Context, spec vector.EndpointSpec) (*vector.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep := &vector.Endpoint{Name: "endpoints/" + spec.DisplayName, DisplayName: spec.DisplayName}
	s.endpoints[spec.DisplayName] = ep
	cp := *ep
	return &cp, nil
}

func (s *memService) DeployIndex(ctx context.Context, ep *vector.Endpoint, idx *vector.Index, deployedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.endpoints[ep.DisplayName]
	for _, d := range stored.Deployments {
		if d.ID == deployedID {
			return vector.ErrConflict
		}
	}
	stored.Deployments = append(stored.Deployments, vector.Deployment{ID: deployedID, IndexName: idx.Name})
	return nil
}

func (s *memService) Upsert(ctx context.Context, idx *vector.Index, points []vector.Datapoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[idx.Name][p.ID] = p.Vector
	}
	return nil
}

func (s *memService) FindNeighbors(ctx context.Context, ep *vector.Endpoint, deployedID string, query []float32, k int) ([]vector.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var indexName string
	for _, d := range s.endpoints[ep.DisplayName].Deployments {
		if d.ID == deployedID {
			indexName = d.IndexName
		}
	}

	var out []vector.Neighbor
	for id, v := range s.points[indexName] {
		out = append(out, vector.Neighbor{ID: id, Distance: cosineDistance(query, v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return out[i].Distance < out[j].Distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
