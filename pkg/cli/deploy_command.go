package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

// NewDeployCommand creates the deploy command group: status, reset,
// promote, wrapping DeploymentRegistry for operator use.
func NewDeployCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Inspect and manage per-environment deployments",
	}

	cmd.AddCommand(newDeployStatusCommand(d))
	cmd.AddCommand(newDeployResetCommand(d))
	cmd.AddCommand(newDeployPromoteCommand(d))
	return cmd
}

func newDeployStatusCommand(d *deps) *cobra.Command {
	var (
		token  string
		asTree bool
	)

	cmd := &cobra.Command{
		Use:   "status <scriptId>",
		Short: "Show the dev/staging/prod deployment status triple",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			tok := resolveToken(d, token)

			status, err := d.registry.Status(context.Background(), projectID, tok)
			if err != nil {
				return fmt.Errorf("fetching deployment status: %w", err)
			}

			if asTree {
				fmt.Fprintln(os.Stdout, console.RenderTree(deployStatusTree(projectID, status)))
				return nil
			}

			var rows [][]string
			for _, env := range []constants.Environment{constants.EnvDev, constants.EnvStaging, constants.EnvProd} {
				s, ok := status[env]
				if !ok {
					rows = append(rows, []string{string(env), "", "", ""})
					continue
				}
				version := "HEAD"
				if s.VersionNumber != nil {
					version = fmt.Sprintf("%d", *s.VersionNumber)
				}
				rows = append(rows, []string{string(env), s.DeploymentID, version, s.URL})
			}

			fmt.Fprint(os.Stdout, console.RenderTable(console.TableConfig{
				Headers: []string{"Environment", "Deployment ID", "Version", "URL"},
				Rows:    rows,
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	cmd.Flags().BoolVar(&asTree, "tree", false, "Render status as a project/environment tree instead of a table")
	return cmd
}

// deployStatusTree builds a project -> environment -> deployment hierarchy
// for --tree rendering.
func deployStatusTree(projectID constants.ProjectID, status map[constants.Environment]gasmodel.EnvironmentStatus) console.TreeNode {
	root := console.TreeNode{Value: string(projectID)}
	for _, env := range []constants.Environment{constants.EnvDev, constants.EnvStaging, constants.EnvProd} {
		s, ok := status[env]
		if !ok {
			root.Children = append(root.Children, console.TreeNode{Value: fmt.Sprintf("%s: not deployed", env)})
			continue
		}
		version := "HEAD"
		if s.VersionNumber != nil {
			version = fmt.Sprintf("%d", *s.VersionNumber)
		}
		envNode := console.TreeNode{Value: string(env)}
		envNode.Children = append(envNode.Children,
			console.TreeNode{Value: fmt.Sprintf("deployment: %s", s.DeploymentID)},
			console.TreeNode{Value: fmt.Sprintf("version: %s", version)},
			console.TreeNode{Value: fmt.Sprintf("url: %s", s.URL)},
		)
		root.Children = append(root.Children, envNode)
	}
	return root
}

func newDeployResetCommand(d *deps) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reset <scriptId>",
		Short: "Idempotently ensure the [DEV], [STAGING] and [PROD] deployments exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			tok := resolveToken(d, token)

			if err := d.registry.Reset(context.Background(), projectID, tok); err != nil {
				return fmt.Errorf("resetting deployments: %w", err)
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Deployments reset"))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	return cmd
}

func newDeployPromoteCommand(d *deps) *cobra.Command {
	var (
		token       string
		environment string
		description string
	)

	cmd := &cobra.Command{
		Use:   "promote <scriptId>",
		Short: "Promote staging or prod to a new version snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := constants.ProjectID(args[0])
			env := constants.Environment(environment)
			if !env.Valid() || env == constants.EnvDev {
				return fmt.Errorf("promote target must be staging or prod, got %q", environment)
			}
			tok := resolveToken(d, token)

			version, err := d.registry.Promote(context.Background(), projectID, env, description, tok)
			if err != nil {
				return fmt.Errorf("promoting %s: %w", env, err)
			}
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Promoted %s to version %d", env, version.VersionNumber)))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	cmd.Flags().StringVar(&environment, "env", "staging", "Target environment: staging or prod")
	cmd.Flags().StringVar(&description, "description", "", "Version description")

	return cmd
}
