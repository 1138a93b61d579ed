package vector

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) FindIndex(ctx context.Context, displayName string) (*Index, error) {
	args := m.Called(ctx, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Index), args.Error(1)
}

func (m *MockService) CreateIndex(ctx context.Context, spec IndexSpec) (*Index, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Index), args.Error(1)
}

func (m *MockService) FindEndpoint(ctx context.Context, displayName string) (*Endpoint, error) {
	args := m.Called(ctx, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Endpoint), args.Error(1)
}

func (m *MockService) CreateEndpoint(ctx context.Context, spec EndpointSpec) (*Endpoint, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Endpoint), args.Error(1)
}

func (m *MockService) DeployIndex(ctx context.Context, ep *Endpoint, idx *Index, deployedID string) error {
	return m.Called(ctx, ep, idx, deployedID).Error(0)
}

func (m *MockService) Upsert(ctx context.Context, idx *Index, points []Datapoint) error {
	return m.Called(ctx, idx, points).Error(0)
}

func (m *MockService) FindNeighbors(ctx context.Context, ep *Endpoint, deployedID string, query []float32, k int) ([]Neighbor, error) {
	args := m.Called(ctx, ep, deployedID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Neighbor), args.Error(1)
}
