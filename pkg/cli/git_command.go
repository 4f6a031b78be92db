package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/gitworkflow"
	"github.com/mcpgas/mcp-gas/pkg/logger"
)

var gitLog = logger.New("cli:git")

// NewGitCommand creates the git command group, a manual-use wrapper over
// GitWorkflow for the feature-branch lifecycle the git_feature MCP tool
// also drives.
func NewGitCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Drive the feature-branch workflow over a project's local mirror",
	}

	var dir string
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Project working directory (defaults to the current directory)")

	cmd.AddCommand(newGitStartCommand(&dir))
	cmd.AddCommand(newGitCommitCommand(&dir))
	cmd.AddCommand(newGitPushCommand(&dir))
	cmd.AddCommand(newGitFinishCommand(&dir))
	cmd.AddCommand(newGitRollbackCommand(&dir))
	cmd.AddCommand(newGitListCommand(&dir))
	cmd.AddCommand(newGitSwitchCommand(&dir))
	return cmd
}

func workflowAt(dir *string) (*gitworkflow.Workflow, error) {
	d := *dir
	if d == "" {
		var err error
		d, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}
	return gitworkflow.New(d), nil
}

// confirmDestructiveGitOp prompts before a destructive git operation,
// skipping the prompt entirely under CI, per IsRunningInCI / huh's
// ACCESSIBLE-gated accessible mode.
func confirmDestructiveGitOp(title, description string) error {
	if IsRunningInCI() {
		gitLog.Print("running in CI, skipping confirmation prompt")
		return nil
	}

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirmed),
		),
	).WithAccessible(console.IsAccessibleMode())

	if err := form.Run(); err != nil {
		return fmt.Errorf("confirmation prompt failed: %w", err)
	}
	if !confirmed {
		return fmt.Errorf("operation cancelled")
	}
	return nil
}

func newGitStartCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Create a new llm-feature-<name> branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			branch, err := w.Start(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Created branch "+branch))
			return nil
		},
	}
}

func newGitCommitCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <message>",
		Short: "Stage and commit all changes on the current feature branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			if err := w.Commit(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Committed changes"))
			return nil
		},
	}
}

func newGitPushCommand(dir *string) *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "push [branch]",
		Short: "Push the current (or named) branch to a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var branch string
			if len(args) > 0 {
				branch = args[0]
			}
			if err := confirmDestructiveGitOp("Push to remote?", "This pushes the branch to "+remote); err != nil {
				return err
			}
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			if err := w.Push(remote, branch); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Pushed"))
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "origin", "Remote name")
	return cmd
}

func newGitFinishCommand(dir *string) *cobra.Command {
	var (
		branch           string
		deleteAfterMerge bool
		pushToRemote     bool
		remote           string
	)

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Squash-merge the current feature branch onto the default branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pushToRemote {
				if err := confirmDestructiveGitOp("Push merged changes?", "This pushes the default branch to "+remote); err != nil {
					return err
				}
			}
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			result, err := w.Finish(branch, deleteAfterMerge, pushToRemote, remote)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Squash commit %s", result.SquashCommit)))
			if pushToRemote && !result.Pushed {
				fmt.Fprintln(os.Stderr, console.FormatWarningMessage("Push failed: "+result.PushError))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "Feature branch to finish (defaults to current)")
	cmd.Flags().BoolVar(&deleteAfterMerge, "delete", false, "Delete the feature branch after merging")
	cmd.Flags().BoolVar(&pushToRemote, "push", false, "Push the default branch after merging")
	cmd.Flags().StringVar(&remote, "remote", "origin", "Remote name")
	return cmd
}

func newGitRollbackCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <branch>",
		Short: "Force-delete a feature branch, discarding uncommitted changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirmDestructiveGitOp("Rollback feature branch?", "This force-deletes "+args[0]+" and discards any uncommitted changes"); err != nil {
				return err
			}
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			result, err := w.Rollback(args[0])
			if err != nil {
				return err
			}
			if result.UncommittedChangesLost {
				fmt.Fprintln(os.Stderr, console.FormatWarningMessage("Uncommitted changes were lost"))
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Branch deleted"))
			return nil
		},
	}
}

func newGitListCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			branches, err := w.List()
			if err != nil {
				return err
			}
			for _, b := range branches {
				fmt.Fprintln(os.Stdout, b)
			}
			return nil
		},
	}
}

func newGitSwitchCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch to an existing branch, requiring a clean tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflowAt(dir)
			if err != nil {
				return err
			}
			return w.Switch(args[0])
		},
	}
}
