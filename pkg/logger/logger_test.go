package logger

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func withDebugEnv(t *testing.T, value string) {
	t.Helper()
	old, had := os.LookupEnv("DEBUG")
	require.NoError(t, os.Setenv("DEBUG", value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("DEBUG", old)
		} else {
			_ = os.Unsetenv("DEBUG")
		}
	})
}

func TestLoggerGlobMatching(t *testing.T) {
	cases := []struct {
		debug     string
		namespace string
		want      bool
	}{
		{"", "mcp:server", false},
		{"*", "mcp:server", true},
		{"mcp:*", "mcp:server", true},
		{"mcp:*", "cli:git", false},
		{"cli:git", "cli:git", true},
		{"cli:git,mcp:*", "mcp:server:http", true},
	}

	for _, tc := range cases {
		withDebugEnv(t, tc.debug)
		l := New(tc.namespace)
		require.Equal(t, tc.want, l.enabled(), "debug=%q namespace=%q", tc.debug, tc.namespace)
	}
}

func TestPrintfRespectsNamespace(t *testing.T) {
	withDebugEnv(t, "cli:git")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	New("cli:other").Printf("should not appear")
	New("cli:git").Printf("hello %s", "world")

	require.NoError(t, w.Close())
	var buf strings.Builder
	buf.ReadFrom(r)

	require.NotContains(t, buf.String(), "should not appear")
	require.Contains(t, buf.String(), "hello world")
}
