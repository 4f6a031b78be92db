package gasapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWithClient(server.Client(), server.URL)
}

func TestGetProjectContent(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[{"name":"main","type":"SERVER_JS","source":"function x(){}"}]}`))
	})

	files, err := gw.GetProjectContent(context.Background(), "proj1", "tok")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "main", files[0].Name)
	require.Equal(t, constants.FileTypeServerJS, files[0].Type)
}

func TestUnauthorizedMapsToAuthenticationKind(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})

	_, err := gw.GetProjectContent(context.Background(), "proj1", "bad-tok")
	require.Error(t, err)
	require.True(t, mcperrors.Is(err, mcperrors.KindAuthentication))
}

func TestConstructGasRunUrlNoDeployment(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deployments":[]}`))
	})

	_, err := gw.ConstructGasRunUrl(context.Background(), "proj1", "tok")
	require.Error(t, err)
}

func TestConstructGasRunUrlResolves(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deployments":[{"deploymentId":"d1","deploymentConfig":{"description":"[DEV]"},"entryPoints":[{"entryPointType":"WEB_APP","webApp":{"url":"https://script.google.com/macros/s/d1/dev"}}]}]}`))
	})

	url, err := gw.ConstructGasRunUrl(context.Background(), "proj1", "tok")
	require.NoError(t, err)
	require.Equal(t, "https://script.google.com/macros/s/d1/dev", url)
}

func TestUpdateFileUpsertsExisting(t *testing.T) {
	var putBody []byte
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"files":[{"name":"main","type":"SERVER_JS","source":"old"}]}`))
			return
		}
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		putBody = buf
		_, _ = w.Write([]byte(`{}`))
	})

	err := gw.UpdateFile(context.Background(), "proj1", "main", "new", constants.FileTypeServerJS, "tok")
	require.NoError(t, err)
	require.Contains(t, string(putBody), "new")
}
