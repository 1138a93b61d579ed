package ingest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dutchsloot84/AgentOps-Mock/internal/catalog"
	"github.com/dutchsloot84/AgentOps-Mock/internal/vector"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockManager struct{ mock.Mock }

func (m *MockManager) IndexDisplayName(dim int) string {
	return m.Called(dim).String(0)
}

func (m *MockManager) EnsureIndex(ctx context.Context, dim int, displayName string) (*vector.Index, error) {
	args := m.Called(ctx, dim, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vector.Index), args.Error(1)
}

func (m *MockManager) EnsureEndpoint(ctx context.Context) (*vector.Endpoint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vector.Endpoint), args.Error(1)
}

func (m *MockManager) EnsureDeployed(ctx context.Context, idx *vector.Index, ep *vector.Endpoint, base string) (string, error) {
	args := m.Called(ctx, idx, ep, base)
	return args.String(0), args.Error(1)
}

type MockUpserter struct{ mock.Mock }

func (m *MockUpserter) Upsert(ctx context.Context, idx *vector.Index, points []vector.Datapoint) error {
	return m.Called(ctx, idx, points).Error(0)
}

type MockCatalog struct{ mock.Mock }

func (m *MockCatalog) Merge(entries catalog.Catalog) error {
	return m.Called(entries).Error(0)
}
