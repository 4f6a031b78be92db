package shim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
)

func TestAllRendersFourArtifactsWithStableFingerprints(t *testing.T) {
	params := Params{TimeZone: "America/Los_Angeles", ProjectTitle: "Demo"}

	artifacts, err := All(params)
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	names := map[string]constants.FileType{}
	for _, a := range artifacts {
		names[a.Name] = a.Type
		require.NotEmpty(t, a.SHA256)
	}
	require.Equal(t, constants.FileTypeServerJS, names[constants.ShimFileName])
	require.Equal(t, constants.FileTypeHTML, names[constants.ErrorTemplateName])
	require.Equal(t, constants.FileTypeHTML, names[constants.SuccessTemplateName])
	require.Equal(t, constants.FileTypeJSON, names[constants.ManifestName])

	again, err := Dispatcher(params)
	require.NoError(t, err)
	require.Equal(t, artifacts[0].SHA256, again.SHA256)
}

func TestManifestContainsAccessEntries(t *testing.T) {
	m, err := Manifest(Params{TimeZone: "UTC", ProjectTitle: "x"})
	require.NoError(t, err)
	require.Contains(t, m.Source, `"access": "MYSELF"`)
	require.Contains(t, m.Source, `"executeAs": "USER_DEPLOYING"`)
}
