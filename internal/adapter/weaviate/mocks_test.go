package weaviate

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) ClassExists(ctx context.Context, className string) (bool, error) {
	args := m.Called(ctx, className)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) CreateClass(ctx context.Context, class *models.Class) error {
	return m.Called(ctx, class).Error(0)
}

func (m *MockClient) GetObject(ctx context.Context, className, id string) (*models.Object, error) {
	args := m.Called(ctx, className, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Object), args.Error(1)
}

func (m *MockClient) PutObject(ctx context.Context, className, id string, props map[string]interface{}) error {
	return m.Called(ctx, className, id, props).Error(0)
}

func (m *MockClient) BatchObjects(ctx context.Context, objects []*models.Object) error {
	return m.Called(ctx, objects).Error(0)
}

func (m *MockClient) NearVector(ctx context.Context, className string, vector []float32, limit int, fields []graphql.Field) ([]map[string]interface{}, error) {
	args := m.Called(ctx, className, vector, limit, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}
