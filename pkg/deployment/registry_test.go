package deployment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

type fakeGateway struct {
	deployments []gasmodel.Deployment
	nextVersion int64
	versions    []gasmodel.Version
	updates     []struct {
		id            string
		versionNumber *int64
		description   string
	}
}

func (f *fakeGateway) ListDeployments(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeGateway) CreateDeployment(_ context.Context, _ constants.ProjectID, description string, versionNumber *int64, _ string) (gasmodel.Deployment, error) {
	d := gasmodel.Deployment{DeploymentID: description, Description: description, VersionNumber: versionNumber}
	f.deployments = append(f.deployments, d)
	return d, nil
}

func (f *fakeGateway) UpdateDeployment(_ context.Context, _ constants.ProjectID, deploymentID string, versionNumber *int64, description string, _ string) error {
	f.updates = append(f.updates, struct {
		id            string
		versionNumber *int64
		description   string
	}{deploymentID, versionNumber, description})
	for i, d := range f.deployments {
		if d.DeploymentID == deploymentID {
			f.deployments[i].VersionNumber = versionNumber
			f.deployments[i].Description = description
		}
	}
	return nil
}

func (f *fakeGateway) CreateVersion(_ context.Context, _ constants.ProjectID, description, _ string) (gasmodel.Version, error) {
	f.nextVersion++
	v := gasmodel.Version{VersionNumber: f.nextVersion, Description: description}
	f.versions = append(f.versions, v)
	return v, nil
}

func TestResetIsIdempotent(t *testing.T) {
	fg := &fakeGateway{}
	reg := New(fg)
	ctx := context.Background()

	require.NoError(t, reg.Reset(ctx, "proj1", "tok"))
	firstCount := len(fg.deployments)
	require.Equal(t, 3, firstCount)

	require.NoError(t, reg.Reset(ctx, "proj1", "tok"))
	require.Equal(t, firstCount, len(fg.deployments), "second reset must not create duplicate deployments")
}

func TestFindTieBreaksOnLowestID(t *testing.T) {
	fg := &fakeGateway{deployments: []gasmodel.Deployment{
		{DeploymentID: "zzz", Description: "[PROD] old"},
		{DeploymentID: "aaa", Description: "[PROD] older"},
	}}
	reg := New(fg)

	d, err := reg.Find(context.Background(), "proj1", constants.EnvProd, "tok")
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, "aaa", d.DeploymentID)
}

func TestPromoteStagingCreatesVersionThenRetargets(t *testing.T) {
	fg := &fakeGateway{deployments: []gasmodel.Deployment{
		{DeploymentID: "s1", Description: "[STAGING] initial"},
	}}
	reg := New(fg)

	version, err := reg.Promote(context.Background(), "proj1", constants.EnvStaging, "v1", "tok")
	require.NoError(t, err)
	require.NotNil(t, version)
	require.Equal(t, int64(1), version.VersionNumber)
	require.Len(t, fg.versions, 1, "version must be created before retarget")
	require.Len(t, fg.updates, 1)
	require.Equal(t, int64(1), *fg.updates[0].versionNumber)
}

func TestPromoteDevNeverCreatesVersion(t *testing.T) {
	fg := &fakeGateway{deployments: []gasmodel.Deployment{
		{DeploymentID: "d1", Description: "[DEV] initial"},
	}}
	reg := New(fg)

	version, err := reg.Promote(context.Background(), "proj1", constants.EnvDev, "refresh", "tok")
	require.NoError(t, err)
	require.Nil(t, version)
	require.Empty(t, fg.versions, "promoting dev must never create a version snapshot")
	require.Len(t, fg.updates, 1)
	require.Nil(t, fg.updates[0].versionNumber)
}

func TestPromoteMissingDeploymentFails(t *testing.T) {
	fg := &fakeGateway{}
	reg := New(fg)

	_, err := reg.Promote(context.Background(), "proj1", constants.EnvProd, "", "tok")
	require.Error(t, err)
}
