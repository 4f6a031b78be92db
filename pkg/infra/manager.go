// Package infra implements InfrastructureManager (C4): guaranteeing a
// project carries the shim, manifest, and at least one usable web-app
// deployment, verified by content fingerprint. HTML-template repair runs
// as a background task registered with a conc.WaitGroup supervisor so it
// never blocks an execution path, but process shutdown can still await
// outstanding repairs briefly (per the design note on structured
// concurrency replacing fire-and-forget goroutines).
package infra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sourcegraph/conc"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
	"github.com/mcpgas/mcp-gas/pkg/shim"
)

var infraLog = logger.New("infra:manager")

// Gateway is the subset of RemoteAPIGateway the manager needs.
type Gateway interface {
	GetProjectContent(ctx context.Context, projectID constants.ProjectID, token string) ([]gasmodel.RemoteFile, error)
	UpdateFile(ctx context.Context, projectID constants.ProjectID, name, source string, ft constants.FileType, token string) error
}

// ExecShimStatus is the structured verification result ExecutionEngine
// forwards to the caller so they can reason about warm-up delays.
type ExecShimStatus struct {
	Verified    bool
	WasCreated  bool
	ExpectedSHA string
	ActualSHA   string
	Error       string
}

// Manager is the InfrastructureManager implementation.
type Manager struct {
	gw       Gateway
	registry *deployment.Registry
	repairs  conc.WaitGroup
}

// New constructs a Manager over a Gateway and the DeploymentRegistry it
// delegates deployment creation to.
func New(gw Gateway, registry *deployment.Registry) *Manager {
	return &Manager{gw: gw, registry: registry}
}

// Wait blocks until any outstanding background HTML-template repairs
// finish. Intended for use during graceful shutdown, with an outer
// timeout applied by the caller.
func (m *Manager) Wait() { m.repairs.Wait() }

// Ensure performs the four-step verification/repair sequence: fetch
// content, verify+repair the shim and HTML templates by fingerprint,
// verify+repair the manifest's entry points, and ensure the [DEV],
// [STAGING] and [PROD] deployments exist (via DeploymentRegistry.Reset).
func (m *Manager) Ensure(ctx context.Context, projectID constants.ProjectID, params shim.Params, token string) (ExecShimStatus, error) {
	remote, err := m.gw.GetProjectContent(ctx, projectID, token)
	if err != nil {
		return ExecShimStatus{}, err
	}
	byName := make(map[string]gasmodel.RemoteFile, len(remote))
	for _, f := range remote {
		byName[f.Name] = f
	}

	dispatcher, err := shim.Dispatcher(params)
	if err != nil {
		return ExecShimStatus{}, mcperrors.Wrap(mcperrors.KindInternal, err, "rendering dispatcher")
	}

	status := ExecShimStatus{ExpectedSHA: dispatcher.SHA256}
	existing, hasShim := byName[dispatcher.Name]
	if hasShim {
		status.ActualSHA = fingerprintOf(existing.Source)
	}
	if !hasShim || status.ActualSHA != dispatcher.SHA256 {
		if err := m.gw.UpdateFile(ctx, projectID, dispatcher.Name, dispatcher.Source, dispatcher.Type, token); err != nil {
			status.Error = err.Error()
			return status, err
		}
		status.WasCreated = true
		status.ActualSHA = dispatcher.SHA256
	}
	status.Verified = true

	m.repairHTMLTemplatesAsync(ctx, projectID, params, byName, token)

	manifestArtifact, err := shim.Manifest(params)
	if err != nil {
		return status, mcperrors.Wrap(mcperrors.KindInternal, err, "rendering manifest")
	}
	if existingManifest, ok := byName[manifestArtifact.Name]; !ok || fingerprintOf(existingManifest.Source) != manifestArtifact.SHA256 {
		infraLog.Printf("project %s: manifest missing entry points, rewriting", projectID)
		if err := m.gw.UpdateFile(ctx, projectID, manifestArtifact.Name, manifestArtifact.Source, manifestArtifact.Type, token); err != nil {
			return status, err
		}
	}

	if err := m.registry.Reset(ctx, projectID, token); err != nil {
		return status, err
	}

	return status, nil
}

// repairHTMLTemplatesAsync spawns a detached, supervised task if either
// HTML template is missing. It must never be awaited by the caller of
// Ensure — only Wait (at shutdown) observes completion.
func (m *Manager) repairHTMLTemplatesAsync(ctx context.Context, projectID constants.ProjectID, params shim.Params, byName map[string]gasmodel.RemoteFile, token string) {
	_, hasError := byName[constants.ErrorTemplateName]
	_, hasSuccess := byName[constants.SuccessTemplateName]
	if hasError && hasSuccess {
		return
	}

	m.repairs.Go(func() {
		if !hasError {
			if artifact, err := shim.ErrorTemplate(params); err == nil {
				if err := m.gw.UpdateFile(ctx, projectID, artifact.Name, artifact.Source, artifact.Type, token); err != nil {
					infraLog.Printf("project %s: background error-template repair failed: %v", projectID, err)
				}
			}
		}
		if !hasSuccess {
			if artifact, err := shim.SuccessTemplate(params); err == nil {
				if err := m.gw.UpdateFile(ctx, projectID, artifact.Name, artifact.Source, artifact.Type, token); err != nil {
					infraLog.Printf("project %s: background success-template repair failed: %v", projectID, err)
				}
			}
		}
	})
}

func fingerprintOf(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
