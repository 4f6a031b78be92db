//go:build !integration

package main

import (
	"testing"

	"github.com/mcpgas/mcp-gas/pkg/cli"
)

func TestRootCommandBuilds(t *testing.T) {
	root := cli.NewRootCommand("test-version")

	if root.Use != "mcp-gas" {
		t.Errorf("root.Use = %q, want mcp-gas", root.Use)
	}
	if root.Version != "test-version" {
		t.Errorf("root.Version = %q, want test-version", root.Version)
	}
	if len(root.Commands()) == 0 {
		t.Error("root command has no subcommands registered")
	}
}
