//go:build !integration

package cli

import "testing"

func TestNewProjectCommandRegistersSubcommands(t *testing.T) {
	cmd := NewProjectCommand(&deps{})

	want := []string{"list", "create", "set-root", "write"}
	got := make(map[string]bool)
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}

	for _, name := range want {
		if !got[name] {
			t.Errorf("project command missing subcommand %q", name)
		}
	}
}
