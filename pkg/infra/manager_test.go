package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/shim"
)

// fakeFullGateway satisfies both infra.Gateway and deployment.Gateway so
// a single fixture can drive Ensure end to end.
type fakeFullGateway struct {
	files       map[string]gasmodel.RemoteFile
	deployments []gasmodel.Deployment
	nextVersion int64
}

func newFakeFullGateway() *fakeFullGateway {
	return &fakeFullGateway{files: map[string]gasmodel.RemoteFile{}}
}

func (f *fakeFullGateway) GetProjectContent(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.RemoteFile, error) {
	var out []gasmodel.RemoteFile
	for _, v := range f.files {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeFullGateway) UpdateFile(_ context.Context, _ constants.ProjectID, name, source string, ft constants.FileType, _ string) error {
	f.files[name] = gasmodel.RemoteFile{Name: name, Type: ft, Source: source}
	return nil
}

func (f *fakeFullGateway) ListDeployments(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeFullGateway) CreateDeployment(_ context.Context, _ constants.ProjectID, description string, versionNumber *int64, _ string) (gasmodel.Deployment, error) {
	d := gasmodel.Deployment{DeploymentID: description, Description: description, VersionNumber: versionNumber}
	f.deployments = append(f.deployments, d)
	return d, nil
}

func (f *fakeFullGateway) UpdateDeployment(_ context.Context, _ constants.ProjectID, deploymentID string, versionNumber *int64, description string, _ string) error {
	for i, d := range f.deployments {
		if d.DeploymentID == deploymentID {
			f.deployments[i].VersionNumber = versionNumber
			f.deployments[i].Description = description
		}
	}
	return nil
}

func (f *fakeFullGateway) CreateVersion(_ context.Context, _ constants.ProjectID, description, _ string) (gasmodel.Version, error) {
	f.nextVersion++
	return gasmodel.Version{VersionNumber: f.nextVersion, Description: description}, nil
}

func TestEnsureFreshProjectInstallsShimAndDeployments(t *testing.T) {
	fg := newFakeFullGateway()
	registry := deployment.New(fg)
	mgr := New(fg, registry)

	status, err := mgr.Ensure(context.Background(), "proj1", shim.Params{TimeZone: "UTC", ProjectTitle: "t"}, "tok")
	require.NoError(t, err)
	require.True(t, status.Verified)
	require.True(t, status.WasCreated)

	mgr.Wait()
	time.Sleep(10 * time.Millisecond)

	require.Contains(t, fg.files, constants.ShimFileName)
	require.Contains(t, fg.files, constants.ManifestName)
	require.Len(t, fg.deployments, 3)
}

func TestEnsureSecondCallDoesNotRewriteUnchangedShim(t *testing.T) {
	fg := newFakeFullGateway()
	registry := deployment.New(fg)
	mgr := New(fg, registry)
	params := shim.Params{TimeZone: "UTC", ProjectTitle: "t"}

	_, err := mgr.Ensure(context.Background(), "proj1", params, "tok")
	require.NoError(t, err)
	mgr.Wait()

	status, err := mgr.Ensure(context.Background(), "proj1", params, "tok")
	require.NoError(t, err)
	require.True(t, status.Verified)
	require.False(t, status.WasCreated, "second Ensure call must not re-upload an already-matching shim")
}
