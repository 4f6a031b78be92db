package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/execengine"
)

// NewExecCommand creates the exec command, a direct CLI wrapper over
// ExecutionEngine.Execute for operator use outside the MCP surface.
func NewExecCommand(d *deps) *cobra.Command {
	var (
		token            string
		environment      string
		autoRedeploy     bool
		executionTimeout int
		responseTimeout  int
		logFilter        string
		logTail          int
		skipSyncCheck    bool
	)

	cmd := &cobra.Command{
		Use:   "exec <scriptId> <jsStatement>",
		Short: "Execute a JavaScript statement against a deployed project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := execRequestFromFlags(args[0], args[1], environment, resolveToken(d, token), autoRedeploy,
				executionTimeout, responseTimeout, logFilter, logTail, skipSyncCheck)

			result, err := d.engine.Execute(context.Background(), req)
			if err != nil {
				return fmt.Errorf("executing statement: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "OAuth access token (falls back to configured token)")
	cmd.Flags().StringVar(&environment, "env", string(constants.EnvDev), "Target environment: dev, staging, or prod")
	cmd.Flags().BoolVar(&autoRedeploy, "auto-redeploy", true, "Repair shim/deployment infrastructure automatically on failure")
	cmd.Flags().IntVar(&executionTimeout, "execution-timeout", constants.MinExecutionTimeoutSeconds, "Execution timeout in seconds")
	cmd.Flags().IntVar(&responseTimeout, "response-timeout", 0, "Response-read timeout in seconds (defaults to execution timeout)")
	cmd.Flags().StringVar(&logFilter, "log-filter", "", "Regex applied per-line to logger output")
	cmd.Flags().IntVar(&logTail, "log-tail", 0, "Keep only the last N lines of logger output after filtering")
	cmd.Flags().BoolVar(&skipSyncCheck, "skip-sync-check", false, "Skip the local/remote drift preflight check")

	return cmd
}

func execRequestFromFlags(scriptID, statement, environment, token string, autoRedeploy bool,
	executionTimeout, responseTimeout int, logFilter string, logTail int, skipSyncCheck bool,
) execengine.Request {
	return execengine.Request{
		ProjectID:        constants.ProjectID(scriptID),
		JSStatement:      statement,
		Environment:      constants.Environment(environment),
		AccessToken:      token,
		AutoRedeploy:     autoRedeploy,
		ExecutionTimeout: time.Duration(executionTimeout) * time.Second,
		ResponseTimeout:  time.Duration(responseTimeout) * time.Second,
		LogFilter:        logFilter,
		LogTail:          logTail,
		SkipSyncCheck:    skipSyncCheck,
	}
}
