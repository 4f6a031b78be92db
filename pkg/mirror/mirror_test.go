package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

func TestWriteAndReadFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	m := New(root, "proj1")
	require.NoError(t, m.EnsureRoot())

	f := gasmodel.RemoteFile{Name: "a/b/c", Type: constants.FileTypeServerJS, Source: "function x(){}"}
	require.NoError(t, m.WriteFile(f))

	local, err := m.ReadFile("a/b/c", constants.FileTypeServerJS)
	require.NoError(t, err)
	require.Equal(t, "function x(){}", local.Content)
	require.Equal(t, "a/b/c.js", local.RelativePath)
}

func TestRoundTripPathMapping(t *testing.T) {
	// P6: toLocalPath(toGasName(p)) == p for any path with a supported extension.
	paths := []string{"main.js", "views/index.html", "appsscript.json", "a/b/c.js"}
	for _, p := range paths {
		name, ft, ok := gasmodel.ToGasName(p)
		require.True(t, ok, p)
		require.Equal(t, p, gasmodel.ToLocalPath(name, ft))
	}
}

func TestListSkipsDotfilesAndUnknownExtensions(t *testing.T) {
	root := t.TempDir()
	m := New(root, "proj1")
	require.NoError(t, m.EnsureRoot())

	_, err := m.Touch("main.js", "function m(){}")
	require.NoError(t, err)
	_, err = m.Touch(".hidden.js", "nope")
	require.NoError(t, err)
	_, err = m.Touch("README.md", "not a gas file")
	require.NoError(t, err)

	files, err := m.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "main.js", files[0].RelativePath)
}

func TestResolveWorkingDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("MCP_GAS_WORKING_DIR", "/tmp/explicit-override")
	m := New(t.TempDir(), "proj1")

	dir, err := m.ResolveWorkingDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit-override", dir)
}
