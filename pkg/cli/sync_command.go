package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/mirror"
	gassync "github.com/mcpgas/mcp-gas/pkg/sync"
)

// NewSyncCommand creates the sync command group: status, diff, and pull,
// wrapping SyncChecker/LocalMirror for operator inspection outside the MCP
// surface.
func NewSyncCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect drift between the local mirror and the remote project",
	}

	cmd.AddCommand(newSyncStatusCommand(d))
	cmd.AddCommand(newSyncDiffCommand(d))
	cmd.AddCommand(newSyncPullCommand(d))
	return cmd
}

func newSyncStatusCommand(d *deps) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "status <scriptId>",
		Short: "Show the sync-drift report between local mirror and remote project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			tok := resolveToken(d, token)

			m := mirror.New(d.cfg.ProjectsRoot(), projectID)
			local, err := m.List()
			if err != nil {
				return fmt.Errorf("listing local files: %w", err)
			}
			remote, err := d.gw.GetProjectContent(context.Background(), projectID, tok)
			if err != nil {
				return fmt.Errorf("fetching remote content: %w", err)
			}

			report := gassync.New().Compare(local, remote)
			printDriftReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	return cmd
}

func newSyncDiffCommand(d *deps) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "diff <scriptId> <path>",
		Short: "Show the local/remote content preview for a single drifted file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			path := args[1]
			tok := resolveToken(d, token)

			m := mirror.New(d.cfg.ProjectsRoot(), projectID)
			local, err := m.List()
			if err != nil {
				return fmt.Errorf("listing local files: %w", err)
			}
			remote, err := d.gw.GetProjectContent(context.Background(), projectID, tok)
			if err != nil {
				return fmt.Errorf("fetching remote content: %w", err)
			}

			report := gassync.New().Compare(local, remote)
			for _, f := range report.Files {
				if f.Path != path {
					continue
				}
				fmt.Fprintln(os.Stdout, console.FormatInfoMessage(fmt.Sprintf("%s: %s", f.Path, f.Class)))
				fmt.Fprintln(os.Stdout, "--- local ---")
				fmt.Fprintln(os.Stdout, f.LocalContent)
				fmt.Fprintln(os.Stdout, "--- remote ---")
				fmt.Fprintln(os.Stdout, f.RemoteContent)
				if f.Truncated {
					fmt.Fprintln(os.Stderr, console.FormatWarningMessage("preview truncated"))
				}
				return nil
			}
			return fmt.Errorf("%s not found in drift report", path)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	return cmd
}

func newSyncPullCommand(d *deps) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "pull <scriptId>",
		Short: "Overwrite the local mirror with the remote project's current content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			tok := resolveToken(d, token)

			m := mirror.New(d.cfg.ProjectsRoot(), projectID)
			if err := m.EnsureRoot(); err != nil {
				return fmt.Errorf("creating local project root: %w", err)
			}
			remote, err := d.gw.GetProjectContent(context.Background(), projectID, tok)
			if err != nil {
				return fmt.Errorf("fetching remote content: %w", err)
			}
			for _, f := range remote {
				if err := m.WriteFile(f); err != nil {
					return fmt.Errorf("writing %s: %w", f.Name, err)
				}
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Pulled %d files into %s", len(remote), m.RootDir())))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	return cmd
}

func printDriftReport(report gasmodel.DriftReport) {
	rows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		rows = append(rows, []string{f.Path, string(f.Class)})
	}
	fmt.Fprint(os.Stdout, console.RenderTable(console.TableConfig{
		Headers: []string{"Path", "Class"},
		Rows:    rows,
	}))

	if report.HasBlockingDrift() {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage("Local mirror has stale files relative to remote; exec will block unless skipSyncCheck is set"))
	}
	for _, w := range report.OrderWarnings {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(w))
	}
}
