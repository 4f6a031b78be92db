// Package cli assembles the mcp-gas cobra command tree: the mcp-server
// entrypoint plus a handful of thin operator-facing wrappers (project,
// sync, git, exec, deploy) over the same component layer the MCP tools
// call into, per SPEC_FULL.md §3.4 / §6.1.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/config"
	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/execengine"
	"github.com/mcpgas/mcp-gas/pkg/gasapi"
	"github.com/mcpgas/mcp-gas/pkg/infra"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcpserver"
)

var rootLog = logger.New("cli:root")

// resolveToken prefers an explicit flag value over the configured token,
// matching mcpserver.Server.token's same precedence for CLI callers.
func resolveToken(d *deps, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if d.cfg == nil {
		return ""
	}
	return d.cfg.AccessToken()
}

// IsRunningInCI reports whether the process is running under a CI runner,
// per the common CI=true convention, so interactive prompts can be skipped
// automatically instead of blocking forever on stdin.
func IsRunningInCI() bool {
	return os.Getenv("CI") != ""
}

// deps bundles the component-layer objects every subcommand needs. Built
// once in NewRootCommand and threaded down via closures, matching the
// teacher's pattern of package-level *Command factory functions that close
// over shared state rather than a DI container.
type deps struct {
	cfg       *config.Store
	gw        *gasapi.Gateway
	registry  *deployment.Registry
	infraMgr  *infra.Manager
	engine    *execengine.Engine
	mcpServer *mcpserver.Server
}

func newDeps() (*deps, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("initializing config store: %w", err)
	}
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	gw := gasapi.New()
	registry := deployment.New(gw)
	infraMgr := infra.New(gw, registry)

	projectsRoot := cfg.ProjectsRoot()
	scratchDir := os.TempDir()
	engine := execengine.New(gw, registry, infraMgr, projectsRoot, scratchDir)

	srv := mcpserver.New(engine, registry, cfg, projectsRoot)

	return &deps{
		cfg:       cfg,
		gw:        gw,
		registry:  registry,
		infraMgr:  infraMgr,
		engine:    engine,
		mcpServer: srv,
	}, nil
}

// NewRootCommand builds the mcp-gas root command with every subcommand
// registered.
func NewRootCommand(version string) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           constants.CLIName,
		Short:         "Expose a Google Apps Script project as a remote, editable, executable workspace",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	root.SetOut(os.Stderr)
	root.SetVersionTemplate(fmt.Sprintf("%s version {{.Version}}\n", constants.CLIName))

	d, err := newDeps()
	if err != nil {
		rootLog.Printf("failed to initialize dependencies: %v", err)
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("initialization failed: %v", err)))
		d = &deps{}
	}

	root.AddCommand(NewMCPServerCommand(d))
	root.AddCommand(NewProjectCommand(d))
	root.AddCommand(NewSyncCommand(d))
	root.AddCommand(NewGitCommand(d))
	root.AddCommand(NewExecCommand(d))
	root.AddCommand(NewDeployCommand(d))

	return root
}
