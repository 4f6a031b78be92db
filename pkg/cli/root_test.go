//go:build !integration

package cli

import (
	"os"
	"testing"

	"github.com/mcpgas/mcp-gas/pkg/config"
)

func TestIsRunningInCI(t *testing.T) {
	original, had := os.LookupEnv("CI")
	defer func() {
		if had {
			os.Setenv("CI", original)
		} else {
			os.Unsetenv("CI")
		}
	}()

	os.Unsetenv("CI")
	if IsRunningInCI() {
		t.Error("IsRunningInCI() = true with CI unset, want false")
	}

	os.Setenv("CI", "true")
	if !IsRunningInCI() {
		t.Error("IsRunningInCI() = false with CI=true, want true")
	}
}

func TestResolveTokenPrefersExplicit(t *testing.T) {
	cfg := config.NewAtPath(t.TempDir() + "/config.json")
	cfg.SetAccessToken("configured-token")
	d := &deps{cfg: cfg}

	if got := resolveToken(d, "explicit-token"); got != "explicit-token" {
		t.Errorf("resolveToken with explicit value = %q, want %q", got, "explicit-token")
	}
	if got := resolveToken(d, ""); got != "configured-token" {
		t.Errorf("resolveToken falling back = %q, want %q", got, "configured-token")
	}
}

func TestResolveTokenWithNilConfig(t *testing.T) {
	d := &deps{}
	if got := resolveToken(d, ""); got != "" {
		t.Errorf("resolveToken with nil config = %q, want empty", got)
	}
}

func TestNewRootCommandRegistersAllSubcommands(t *testing.T) {
	root := NewRootCommand("test-version")

	want := []string{"mcp-server", "project", "sync", "git", "exec", "deploy"}
	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}

	for _, name := range want {
		if !got[name] {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}
