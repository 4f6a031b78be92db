// Command mcp-gas is a cobra-based CLI exposing a Google Apps Script
// project as a remote, editable, executable workspace, either as an MCP
// server (mcp-server) or through a handful of thin operator commands
// (project, sync, git, exec, deploy) over the same component layer.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mcpgas/mcp-gas/pkg/cli"
	"github.com/mcpgas/mcp-gas/pkg/console"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	root := cli.NewRootCommand(version)

	if err := root.Execute(); err != nil {
		errMsg := err.Error()
		isAlreadyFormatted := strings.HasPrefix(errMsg, "✗") ||
			strings.Contains(errMsg, "error:") || strings.Contains(errMsg, "warning:")

		if isAlreadyFormatted {
			fmt.Fprintln(os.Stderr, errMsg)
		} else {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(errMsg))
		}
		os.Exit(1)
	}
}
