package execengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/infra"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

// fakeEngineGateway satisfies execengine.Gateway for tests that never
// reach ConstructGasRunUrl because the deployment registry already
// resolved a web app URL.
type fakeEngineGateway struct {
	constructURL string
	constructErr error
	content      []gasmodel.RemoteFile
}

func (f *fakeEngineGateway) ConstructGasRunUrl(_ context.Context, _ constants.ProjectID, _ string) (string, error) {
	if f.constructErr != nil {
		return "", f.constructErr
	}
	return f.constructURL, nil
}

func (f *fakeEngineGateway) GetProjectContent(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.RemoteFile, error) {
	return f.content, nil
}

// fakeDeploymentGateway backs deployment.Registry for tests.
type fakeDeploymentGateway struct {
	deployments []gasmodel.Deployment
}

func (f *fakeDeploymentGateway) ListDeployments(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeDeploymentGateway) CreateDeployment(_ context.Context, _ constants.ProjectID, description string, versionNumber *int64, _ string) (gasmodel.Deployment, error) {
	d := gasmodel.Deployment{DeploymentID: "new-dep", Description: description, VersionNumber: versionNumber}
	f.deployments = append(f.deployments, d)
	return d, nil
}

func (f *fakeDeploymentGateway) UpdateDeployment(_ context.Context, _ constants.ProjectID, deploymentID string, versionNumber *int64, description string, _ string) error {
	return nil
}

func (f *fakeDeploymentGateway) CreateVersion(_ context.Context, _ constants.ProjectID, description, _ string) (gasmodel.Version, error) {
	return gasmodel.Version{VersionNumber: 1, Description: description}, nil
}

func newEngineForURL(t *testing.T, serverURL string) *Engine {
	t.Helper()
	dep := gasmodel.Deployment{
		DeploymentID: "dep-dev-1",
		Description:  "[DEV] local",
		EntryPoints:  []gasmodel.EntryPoint{{Type: gasmodel.EntryPointWebApp, WebAppURL: serverURL}},
	}
	depGW := &fakeDeploymentGateway{deployments: []gasmodel.Deployment{dep}}
	registry := deployment.New(depGW)

	engGW := &fakeEngineGateway{constructErr: mcperrors.New(mcperrors.KindNoDeployment, "no deployment")}
	infraMgr := infra.New(&noopInfraGateway{}, registry)

	return New(engGW, registry, infraMgr, t.TempDir(), t.TempDir())
}

type noopInfraGateway struct{}

func (noopInfraGateway) GetProjectContent(_ context.Context, _ constants.ProjectID, _ string) ([]gasmodel.RemoteFile, error) {
	return nil, nil
}

func (noopInfraGateway) UpdateFile(_ context.Context, _ constants.ProjectID, _, _ string, _ constants.FileType, _ string) error {
	return nil
}

func TestExecuteReturnsDataEnvelopeResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"data","payload":42,"logger_output":"hello\nworld"}`))
	}))
	defer server.Close()

	e := newEngineForURL(t, server.URL)
	result, err := e.Execute(context.Background(), Request{
		ProjectID:   "proj-1",
		JSStatement: "1+1;",
		Environment: constants.EnvDev,
	})
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)
	require.EqualValues(t, 42, result.Result)
	require.Equal(t, "hello\nworld", result.LoggerOutput)
}

func TestExecuteReturnsStructuredExecutionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"exception","payload":{"error":{"name":"Error","message":"ReferenceError: foo is not defined","stack":"at bar"}},"logger_output":""}`))
	}))
	defer server.Close()

	e := newEngineForURL(t, server.URL)
	result, err := e.Execute(context.Background(), Request{
		ProjectID:   "proj-1",
		JSStatement: "foo();",
		Environment: constants.EnvDev,
	})
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.NotNil(t, result.Error)
	require.Equal(t, "ReferenceError", result.Error.Type)
}

func TestExecuteRejectsBlankStatement(t *testing.T) {
	e := newEngineForURL(t, "http://unused.invalid")
	_, err := e.Execute(context.Background(), Request{ProjectID: "proj-1"})
	require.Error(t, err)
	require.True(t, mcperrors.Is(err, mcperrors.KindValidation))
}

func TestExecuteAutoRedeployDisabledWhenNoDeployment(t *testing.T) {
	depGW := &fakeDeploymentGateway{}
	registry := deployment.New(depGW)
	engGW := &fakeEngineGateway{constructErr: mcperrors.New(mcperrors.KindNoDeployment, "no deployment")}
	infraMgr := infra.New(&noopInfraGateway{}, registry)
	e := New(engGW, registry, infraMgr, t.TempDir(), t.TempDir())

	_, err := e.Execute(context.Background(), Request{
		ProjectID:    "proj-1",
		JSStatement:  "1+1;",
		Environment:  constants.EnvDev,
		AutoRedeploy: false,
	})
	require.Error(t, err)
	require.True(t, mcperrors.Is(err, mcperrors.KindAutoRedeployDisabled))
}

func TestExecuteFiltersAndTailsLoggerOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"data","payload":null,"logger_output":"keep-1\nskip\nkeep-2\nkeep-3"}`))
	}))
	defer server.Close()

	e := newEngineForURL(t, server.URL)
	result, err := e.Execute(context.Background(), Request{
		ProjectID:   "proj-1",
		JSStatement: "1+1;",
		Environment: constants.EnvDev,
		LogFilter:   "^keep",
		LogTail:     2,
	})
	require.NoError(t, err)
	require.Equal(t, "keep-2\nkeep-3", result.LoggerOutput)
	require.Equal(t, 1, result.FilteredLines)
	require.Equal(t, 1, result.TrimmedLines)
}

func TestExecuteHonorsExecutionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"type":"data","payload":1,"logger_output":""}`))
	}))
	defer server.Close()

	e := newEngineForURL(t, server.URL)
	_, err := e.Execute(context.Background(), Request{
		ProjectID:        "proj-1",
		JSStatement:      "1+1;",
		Environment:      constants.EnvDev,
		ExecutionTimeout: 10 * time.Millisecond,
	})
	require.Error(t, err)
	require.True(t, mcperrors.Is(err, mcperrors.KindTimeout))
}
