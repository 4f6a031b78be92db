// Package deployment implements DeploymentRegistry (C3) and
// PromotionController (C9): finding/creating/tagging environment
// deployments, and promoting HEAD into an immutable staging/prod
// snapshot.
package deployment

import (
	"context"
	"fmt"
	"sort"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

var registryLog = logger.New("deployment:registry")

// Gateway is the subset of RemoteAPIGateway the registry needs, kept as
// an interface so tests can fake it without spinning up an httptest
// server for every DeploymentRegistry scenario.
type Gateway interface {
	ListDeployments(ctx context.Context, projectID constants.ProjectID, token string) ([]gasmodel.Deployment, error)
	CreateDeployment(ctx context.Context, projectID constants.ProjectID, description string, versionNumber *int64, token string) (gasmodel.Deployment, error)
	UpdateDeployment(ctx context.Context, projectID constants.ProjectID, deploymentID string, versionNumber *int64, description string, token string) error
	CreateVersion(ctx context.Context, projectID constants.ProjectID, description, token string) (gasmodel.Version, error)
}

// Registry is the DeploymentRegistry implementation.
type Registry struct {
	gw Gateway
}

// New constructs a Registry over the given Gateway.
func New(gw Gateway) *Registry {
	return &Registry{gw: gw}
}

// Find looks up the authoritative deployment for an environment, per I2:
// when multiple deployments share a tag, the lexicographically smallest
// deploymentId wins (Q1 decision — see DESIGN.md) and a warning is logged.
func (r *Registry) Find(ctx context.Context, projectID constants.ProjectID, env constants.Environment, token string) (*gasmodel.Deployment, error) {
	deployments, err := r.gw.ListDeployments(ctx, projectID, token)
	if err != nil {
		return nil, err
	}

	var matches []gasmodel.Deployment
	for _, d := range deployments {
		if tagged, ok := d.Environment(); ok && tagged == env {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].DeploymentID < matches[j].DeploymentID })
	if len(matches) > 1 {
		registryLog.Printf("project %s: %d deployments tagged %s, choosing lowest id %s", projectID, len(matches), env.Tag(), matches[0].DeploymentID)
	}
	chosen := matches[0]
	return &chosen, nil
}

// Reset enumerates deployments and creates any of the three
// environment-tagged deployments that are missing, all targeting HEAD.
// Idempotent: calling it twice in a row produces the same tag set (P7).
func (r *Registry) Reset(ctx context.Context, projectID constants.ProjectID, token string) error {
	for _, env := range []constants.Environment{constants.EnvDev, constants.EnvStaging, constants.EnvProd} {
		existing, err := r.Find(ctx, projectID, env, token)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		registryLog.Printf("project %s: creating missing %s deployment at HEAD", projectID, env)
		if _, err := r.gw.CreateDeployment(ctx, projectID, fmt.Sprintf("%s auto-managed", env.Tag()), nil, token); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the full (deploymentId, versionNumber, url) triple for
// each of the three environments.
func (r *Registry) Status(ctx context.Context, projectID constants.ProjectID, token string) (map[constants.Environment]gasmodel.EnvironmentStatus, error) {
	status := make(map[constants.Environment]gasmodel.EnvironmentStatus, 3)
	for _, env := range []constants.Environment{constants.EnvDev, constants.EnvStaging, constants.EnvProd} {
		d, err := r.Find(ctx, projectID, env, token)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		entry := gasmodel.EnvironmentStatus{DeploymentID: d.DeploymentID, VersionNumber: d.VersionNumber}
		for _, ep := range d.EntryPoints {
			if ep.Type == gasmodel.EntryPointWebApp {
				entry.URL = ep.WebAppURL
			}
		}
		status[env] = entry
	}
	return status, nil
}

// Promote implements promote(projectId, env, description?): staging/prod
// get a fresh immutable version pointed at by a deployment retarget; dev
// stays on HEAD and only its description is refreshed (Q3 decision — see
// DESIGN.md, codifying that dev never freezes a snapshot).
func (r *Registry) Promote(ctx context.Context, projectID constants.ProjectID, env constants.Environment, description string, token string) (*gasmodel.Version, error) {
	if !env.Valid() {
		return nil, mcperrors.New(mcperrors.KindValidation, "unknown environment %q", env)
	}

	d, err := r.Find(ctx, projectID, env, token)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, mcperrors.New(mcperrors.KindNoDeployment, "no %s deployment found for project %s; run reset first", env, projectID)
	}

	if description == "" {
		description = fmt.Sprintf("%s promoted", env.Tag())
	} else if len(description) < len(env.Tag()) || description[:len(env.Tag())] != env.Tag() {
		description = env.Tag() + " " + description
	}

	if env == constants.EnvDev {
		if err := r.gw.UpdateDeployment(ctx, projectID, d.DeploymentID, nil, description, token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// Ordering guarantee (§5): version creation strictly precedes retarget.
	version, err := r.gw.CreateVersion(ctx, projectID, description, token)
	if err != nil {
		return nil, err
	}
	if err := r.gw.UpdateDeployment(ctx, projectID, d.DeploymentID, &version.VersionNumber, description, token); err != nil {
		// Atomicity note (§4.9): the version remains; the next promote
		// retries the retarget. No rollback of the version is attempted.
		return &version, mcperrors.Wrap(mcperrors.KindInternal, err, "version %d created but retarget of deployment %s failed; retry promote", version.VersionNumber, d.DeploymentID)
	}
	return &version, nil
}
