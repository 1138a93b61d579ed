package vector

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned when a create or deploy collides with an
	// existing resource of the same identifier.
	ErrConflict = errors.New("resource already exists")
	// ErrEndpointNotFound is returned when no endpoint has the configured
	// display name.
	ErrEndpointNotFound = errors.New("index endpoint not found")
	// ErrNoDeployment is returned when the endpoint serves no index.
	ErrNoDeployment = errors.New("endpoint has no deployed index")
)

const DistanceCosine = "COSINE_DISTANCE"

type Index struct {
	// Name is the service resource name, DisplayName the human label used
	// for lookups.
	Name        string
	DisplayName string
	Dimension   int
	Labels      map[string]string
}

type Endpoint struct {
	Name         string
	DisplayName  string
	PublicDomain string
	Deployments  []Deployment
}

// Deployment binds an index to an endpoint under a deployed index ID.
type Deployment struct {
	ID        string
	IndexName string
}

// DeploymentOf returns the deployment serving indexName, if any.
func (e *Endpoint) DeploymentOf(indexName string) (Deployment, bool) {
	for _, d := range e.Deployments {
		if d.IndexName == indexName {
			return d, true
		}
	}
	return Deployment{}, false
}

type IndexSpec struct {
	DisplayName string
	Dimension   int
	Distance    string
	Labels      map[string]string
}

type EndpointSpec struct {
	DisplayName string
	Public      bool
	Labels      map[string]string
}

type Datapoint struct {
	ID     string
	Vector []float32
}

type Neighbor struct {
	ID       string
	Distance float64
}

// Service is the managed vector search surface the manager drives. Find
// methods return nil and no error when nothing matches.
type Service interface {
	FindIndex(ctx context.Context, displayName string) (*Index, error)
	CreateIndex(ctx context.Context, spec IndexSpec) (*Index, error)
	FindEndpoint(ctx context.Context, displayName string) (*Endpoint, error)
	CreateEndpoint(ctx context.Context, spec EndpointSpec) (*Endpoint, error)
	DeployIndex(ctx context.Context, ep *Endpoint, idx *Index, deployedID string) error
	Upsert(ctx context.Context, idx *Index, points []Datapoint) error
	FindNeighbors(ctx context.Context, ep *Endpoint, deployedID string, query []float32, k int) ([]Neighbor, error)
}
