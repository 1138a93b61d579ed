package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// Client is the slice of the Weaviate API the index service needs.
type Client interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	// GetObject returns nil and no error when the object does not exist.
	GetObject(ctx context.Context, className, id string) (*models.Object, error)
	PutObject(ctx context.Context, className, id string, props map[string]interface{}) error
	BatchObjects(ctx context.Context, objects []*models.Object) error
	NearVector(ctx context.Context, className string, vector []float32, limit int, fields []graphql.Field) ([]map[string]interface{}, error)
}

type ClientAdapter struct {
	Client *weaviate.Client
}

var _ Client = (*ClientAdapter)(nil)

func NewClientAdapter(client *weaviate.Client) *ClientAdapter {
	return &ClientAdapter{Client: client}
}

// NewClient connects to the Weaviate instance at scheme://host.
func NewClient(host, scheme string) (*ClientAdapter, error) {
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	return NewClientAdapter(client), nil
}

func (a *ClientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *ClientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *ClientAdapter) GetObject(ctx context.Context, className, id string) (*models.Object, error) {
	exists, err := a.Client.Data().Checker().WithClassName(className).WithID(id).Do(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	objs, err := a.Client.Data().ObjectsGetter().WithClassName(className).WithID(id).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objs[0], nil
}

func (a *ClientAdapter) PutObject(ctx context.Context, className, id string, props map[string]interface{}) error {
	exists, err := a.Client.Data().Checker().WithClassName(className).WithID(id).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return a.Client.Data().Updater().
			WithClassName(className).
			WithID(id).
			WithProperties(props).
			Do(ctx)
	}
	_, err = a.Client.Data().Creator().
		WithClassName(className).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	return err
}

func (a *ClientAdapter) BatchObjects(ctx context.Context, objects []*models.Object) error {
	res, err := a.Client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (a *ClientAdapter) NearVector(ctx context.Context, className string, vector []float32, limit int, fields []graphql.Field) ([]map[string]interface{}, error) {
	near := a.Client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	res, err := a.Client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(near).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var rows []map[string]interface{}
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if items, ok := data[className].([]interface{}); ok {
			for _, item := range items {
				if props, ok := item.(map[string]interface{}); ok {
					rows = append(rows, props)
				}
			}
		}
	}
	return rows, nil
}

func objectID(id string) strfmt.UUID {
	return strfmt.UUID(id)
}
