//go:build !integration

package cli

import "testing"

func TestNewSyncCommandRegistersSubcommands(t *testing.T) {
	cmd := NewSyncCommand(&deps{})

	want := []string{"status", "diff", "pull"}
	got := make(map[string]bool)
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}

	for _, name := range want {
		if !got[name] {
			t.Errorf("sync command missing subcommand %q", name)
		}
	}
}
