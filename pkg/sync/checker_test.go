package sync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

func TestCompareClassifiesAllFourStates(t *testing.T) {
	local := []gasmodel.LocalFile{
		{RelativePath: "same.js", Content: "x"},
		{RelativePath: "stale.js", Content: "local-version"},
		{RelativePath: "localonly.js", Content: "only here"},
	}
	remote := []gasmodel.RemoteFile{
		{Name: "same", Type: constants.FileTypeServerJS, Source: "x"},
		{Name: "stale", Type: constants.FileTypeServerJS, Source: "remote-version"},
		{Name: "remoteonly", Type: constants.FileTypeServerJS, Source: "only remote"},
	}

	report := New().Compare(local, remote)

	classes := map[string]gasmodel.DriftClass{}
	for _, f := range report.Files {
		classes[f.Path] = f.Class
	}

	require.Equal(t, gasmodel.DriftInSync, classes["same"])
	require.Equal(t, gasmodel.DriftLocalStale, classes["stale"])
	require.Equal(t, gasmodel.DriftRemoteOnly, classes["remoteonly"])
	require.Equal(t, gasmodel.DriftLocalOnly, classes["localonly"])
	require.True(t, report.Blocking, "local_stale must set Blocking")
}

func TestCompareExcludesSystemFiles(t *testing.T) {
	local := []gasmodel.LocalFile{{RelativePath: constants.ShimFileName + ".js", Content: "old shim"}}
	remote := []gasmodel.RemoteFile{{Name: constants.ShimFileName, Type: constants.FileTypeServerJS, Source: "new shim"}}

	report := New().Compare(local, remote)
	require.Empty(t, report.Files)
	require.False(t, report.Blocking)
}

func TestCompareInSyncOnlyIsNonBlocking(t *testing.T) {
	local := []gasmodel.LocalFile{{RelativePath: "a.js", Content: "same"}}
	remote := []gasmodel.RemoteFile{{Name: "a", Type: constants.FileTypeServerJS, Source: "same"}}

	report := New().Compare(local, remote)
	require.False(t, report.Blocking)
}

func TestCheckOrderFlagsViolation(t *testing.T) {
	remote := []gasmodel.RemoteFile{
		{Name: "common-js/01_require", Type: constants.FileTypeServerJS},
		{Name: "common-js/00_polyfills", Type: constants.FileTypeServerJS},
	}
	c := New()
	warnings := c.checkOrder(remote)
	require.NotEmpty(t, warnings)
}
