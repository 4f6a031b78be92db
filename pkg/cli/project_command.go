package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/fileutil"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/gitworkflow"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mirror"
	"github.com/mcpgas/mcp-gas/pkg/shim"
)

var projectLog = logger.New("cli:project")

// NewProjectCommand creates the project command group: list, create,
// set-root and write.
func NewProjectCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage Apps Script projects (thin RemoteAPIGateway wrapper)",
	}

	cmd.AddCommand(newProjectListCommand(d))
	cmd.AddCommand(newProjectCreateCommand(d))
	cmd.AddCommand(newProjectSetRootCommand(d))
	cmd.AddCommand(newProjectWriteCommand(d))
	return cmd
}

func newProjectSetRootCommand(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set-root <path>",
		Short: "Persist the local projects root directory that per-project mirrors live under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cleanPath, err := fileutil.ValidateAbsolutePath(args[0])
			if err != nil {
				return fmt.Errorf("invalid projects root: %w", err)
			}
			if fileutil.FileExists(cleanPath) {
				return fmt.Errorf("%s is a file, not a directory", cleanPath)
			}
			if !fileutil.DirExists(cleanPath) {
				if err := os.MkdirAll(cleanPath, 0o755); err != nil {
					return fmt.Errorf("creating projects root: %w", err)
				}
			}

			d.cfg.SetProjectsRoot(cleanPath)
			if err := d.cfg.Save(); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			size := fileutil.CalculateDirectorySize(cleanPath)
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(
				fmt.Sprintf("Projects root set to %s (%d bytes currently on disk)", cleanPath, size)))
			return nil
		},
	}
}

func newProjectListCommand(d *deps) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Apps Script projects visible to the configured account",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := resolveToken(d, token)
			projects, err := d.gw.ListProjects(context.Background(), 50, tok)
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{p.ProjectID.String(), p.Title})
			}
			fmt.Fprint(os.Stdout, console.RenderTable(console.TableConfig{
				Headers: []string{"Script ID", "Title"},
				Rows:    rows,
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	return cmd
}

func newProjectCreateCommand(d *deps) *cobra.Command {
	var (
		token        string
		timeZone     string
		projectTitle string
	)

	cmd := &cobra.Command{
		Use:   "create <scriptId>",
		Short: "Bootstrap the exec shim onto an existing Apps Script project and pull its content locally",
		Long: `Installs the bootstrap dispatcher, HTML templates, and manifest entries
onto an existing Apps Script project (created via the Apps Script editor or
Drive, per the out-of-scope container-binding note), then ensures a local
mirror directory exists for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			if !projectID.IsValid() {
				return fmt.Errorf("invalid script id")
			}
			tok := resolveToken(d, token)

			ctx := context.Background()
			status, err := d.infraMgr.Ensure(ctx, projectID, shim.Params{TimeZone: timeZone, ProjectTitle: projectTitle}, tok)
			if err != nil {
				return fmt.Errorf("ensuring infrastructure: %w", err)
			}
			projectLog.Printf("infra ensure: verified=%v created=%v", status.Verified, status.WasCreated)

			m := mirror.New(d.cfg.ProjectsRoot(), projectID)
			if err := m.EnsureRoot(); err != nil {
				return fmt.Errorf("creating local project root: %w", err)
			}

			remote, err := d.gw.GetProjectContent(ctx, projectID, tok)
			if err != nil {
				return fmt.Errorf("fetching project content: %w", err)
			}
			for _, f := range remote {
				if err := m.WriteFile(f); err != nil {
					return fmt.Errorf("writing local mirror file %s: %w", f.Name, err)
				}
			}

			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Project %s ready at %s", projectID, m.RootDir())))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	cmd.Flags().StringVar(&timeZone, "timezone", "Etc/UTC", "Time zone recorded in the project manifest")
	cmd.Flags().StringVar(&projectTitle, "title", "mcp-gas project", "Display title recorded in the project manifest")

	return cmd
}

// newProjectWriteCommand implements the write path (spec §4.8's
// "ensureFeatureBranch before mutating files"): it updates one source
// file both remotely and in the local mirror, auto-creating or reusing a
// feature branch, then commits the change on it. Content is read from
// --file or, if omitted, from stdin.
func newProjectWriteCommand(d *deps) *cobra.Command {
	var (
		token      string
		contentSrc string
	)

	cmd := &cobra.Command{
		Use:   "write <scriptId> <path>",
		Short: "Write one source file locally and remotely, auto-branching and committing the change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			relPath := args[1]
			tok := resolveToken(d, token)

			name, ft, ok := gasmodel.ToGasName(relPath)
			if !ok {
				return fmt.Errorf("%s has no recognized GAS file extension", relPath)
			}

			var content []byte
			var err error
			if contentSrc != "" {
				content, err = os.ReadFile(contentSrc)
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading content: %w", err)
			}

			m := mirror.New(d.cfg.ProjectsRoot(), projectID)
			if err := m.EnsureRoot(); err != nil {
				return fmt.Errorf("creating local project root: %w", err)
			}

			// The mirror root doubles as the git working directory: it is
			// the directory the local Git mirror shadows.
			w := gitworkflow.New(m.RootDir())
			branch := ""
			branchCreated := false
			if w.IsRepo() {
				branch, branchCreated, err = w.EnsureFeatureBranch()
				if err != nil {
					return fmt.Errorf("ensuring feature branch: %w", err)
				}
			}

			remoteFile := gasmodel.RemoteFile{Name: name, Type: ft, Source: string(content)}
			if err := d.gw.UpdateFile(context.Background(), projectID, name, remoteFile.Source, ft, tok); err != nil {
				return fmt.Errorf("updating remote file %s: %w", name, err)
			}
			if err := m.WriteFile(remoteFile); err != nil {
				return fmt.Errorf("writing local mirror file %s: %w", relPath, err)
			}

			if w.IsRepo() {
				if err := w.Commit(fmt.Sprintf("Update %s", relPath)); err != nil {
					return fmt.Errorf("committing %s: %w", relPath, err)
				}
			}

			msg := fmt.Sprintf("Wrote %s", name)
			if branch != "" {
				msg = fmt.Sprintf("%s (branch=%s, branchCreated=%v)", msg, branch, branchCreated)
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(msg))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	cmd.Flags().StringVar(&contentSrc, "file", "", "Local file to read content from (defaults to stdin)")
	return cmd
}
