package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LabelConfig tags resources created by the manager with a hash of the
// settings that shaped them.
const LabelConfig = "agentops-config"

type ManagerConfig struct {
	IndexDisplayName    string
	IndexNameWithDim    bool
	EndpointDisplayName string
	DeployedIndexID     string
	DeploySettle        time.Duration
}

// Manager drives the index, endpoint and deployment lifecycle to the
// desired state. Resources are matched by display name, so it is
// idempotent for a single writer only: two concurrent runs against an empty
// project may both create.
type Manager struct {
	svc    Service
	cfg    ManagerConfig
	sleep  func(context.Context, time.Duration) error
	suffix func() string
}

func NewManager(svc Service, cfg ManagerConfig) *Manager {
	return &Manager{
		svc:    svc,
		cfg:    cfg,
		sleep:  sleepCtx,
		suffix: randomSuffix,
	}
}

func (m *Manager) Service() Service {
	return m.svc
}

// IndexDisplayName is the display name of the index holding vectors of dim.
func (m *Manager) IndexDisplayName(dim int) string {
	if m.cfg.IndexNameWithDim {
		return fmt.Sprintf("%s-%d", m.cfg.IndexDisplayName, dim)
	}
	return m.cfg.IndexDisplayName
}

// EnsureIndex returns the index named displayName, creating a cosine index
// of dimension dim when none exists.
func (m *Manager) EnsureIndex(ctx context.Context, dim int, displayName string) (*Index, error) {
	idx, err := m.svc.FindIndex(ctx, displayName)
	if err != nil {
		return nil, fmt.Errorf("find index %q: %w", displayName, err)
	}
	if idx != nil {
		if idx.Dimension != 0 && idx.Dimension != dim {
			return nil, fmt.Errorf("index %q has dimension %d, vectors have %d", displayName, idx.Dimension, dim)
		}
		slog.InfoContext(ctx, "reusing index", "index", idx.Name, "display_name", displayName)
		return idx, nil
	}

	spec := IndexSpec{
		DisplayName: displayName,
		Dimension:   dim,
		Distance:    DistanceCosine,
	}
	spec.Labels = map[string]string{LabelConfig: ConfigHash(spec.DisplayName, spec.Dimension, spec.Distance)}

	slog.InfoContext(ctx, "creating index", "display_name", displayName, "dimension", dim)
	idx, err = m.svc.CreateIndex(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("create index %q: %w", displayName, err)
	}
	slog.InfoContext(ctx, "index created", "index", idx.Name)
	return idx, nil
}

// EnsureEndpoint returns the configured public endpoint, creating it when
// missing.
func (m *Manager) EnsureEndpoint(ctx context.Context) (*Endpoint, error) {
	name := m.cfg.EndpointDisplayName
	ep, err := m.svc.FindEndpoint(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find endpoint %q: %w", name, err)
	}
	if ep != nil {
		slog.InfoContext(ctx, "reusing endpoint", "endpoint", ep.Name, "display_name", name)
		return ep, nil
	}

	slog.InfoContext(ctx, "creating endpoint", "display_name", name)
	ep, err = m.svc.CreateEndpoint(ctx, EndpointSpec{
		DisplayName: name,
		Public:      true,
		Labels:      map[string]string{LabelConfig: ConfigHash(name, 0, "public")},
	})
	if err != nil {
		return nil, fmt.Errorf("create endpoint %q: %w", name, err)
	}
	return ep, nil
}

// EnsureDeployed makes sure idx is served by ep and returns the deployed
// index ID. An ID collision on the first attempt is retried once under a
// suffixed ID; any other failure is returned as is.
func (m *Manager) EnsureDeployed(ctx context.Context, idx *Index, ep *Endpoint, base string) (string, error) {
	if base == "" {
		base = m.cfg.DeployedIndexID
	}
	if d, ok := ep.DeploymentOf(idx.Name); ok {
		slog.InfoContext(ctx, "index already deployed", "endpoint", ep.Name, "deployed_index_id", d.ID)
		return d.ID, nil
	}

	id := base
	err := m.svc.DeployIndex(ctx, ep, idx, id)
	if errors.Is(err, ErrConflict) {
		id = base + "_" + m.suffix()
		slog.WarnContext(ctx, "deployed index id taken, retrying", "base", base, "deployed_index_id", id)
		err = m.svc.DeployIndex(ctx, ep, idx, id)
	}
	if err != nil {
		return "", fmt.Errorf("deploy index %s as %q: %w", idx.Name, id, err)
	}

	ep.Deployments = append(ep.Deployments, Deployment{ID: id, IndexName: idx.Name})
	slog.InfoContext(ctx, "index deployed", "endpoint", ep.Name, "deployed_index_id", id)

	if m.cfg.DeploySettle > 0 {
		if err := m.sleep(ctx, m.cfg.DeploySettle); err != nil {
			return "", err
		}
	}
	return id, nil
}

// ResolveEndpoint finds the configured endpoint and picks the deployment to
// query. When dim is known, the deployment serving the index for that
// dimension wins, so a model switch stops routing to the old index. Without
// one it falls back to the configured deployed index ID, then one derived
// from it by the conflict retry, then the first one.
func (m *Manager) ResolveEndpoint(ctx context.Context, dim int) (*Endpoint, string, error) {
	name := m.cfg.EndpointDisplayName
	ep, err := m.svc.FindEndpoint(ctx, name)
	if err != nil {
		return nil, "", fmt.Errorf("find endpoint %q: %w", name, err)
	}
	if ep == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrEndpointNotFound, name)
	}
	if len(ep.Deployments) == 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrNoDeployment, name)
	}

	if dim > 0 {
		displayName := m.IndexDisplayName(dim)
		idx, err := m.svc.FindIndex(ctx, displayName)
		if err != nil {
			return nil, "", fmt.Errorf("find index %q: %w", displayName, err)
		}
		if idx != nil {
			if d, ok := ep.DeploymentOf(idx.Name); ok {
				return ep, d.ID, nil
			}
			slog.WarnContext(ctx, "active index not deployed, falling back to deployed index id",
				"index", idx.Name, "endpoint", ep.Name)
		}
	}

	base := m.cfg.DeployedIndexID
	for _, d := range ep.Deployments {
		if d.ID == base {
			return ep, d.ID, nil
		}
	}
	for _, d := range ep.Deployments {
		if strings.HasPrefix(d.ID, base+"_") {
			return ep, d.ID, nil
		}
	}
	return ep, ep.Deployments[0].ID, nil
}

// ConfigHash is a short stable digest of the settings a resource was
// created with.
func ConfigHash(name string, dim int, distance string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", name, dim, distance)))
	return hex.EncodeToString(sum[:])[:16]
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
