package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/logger"
)

var mcpLog = logger.New("cli:mcp-server")

// mcpServerHTTPTimeout bounds header-read time for the HTTP/SSE transport.
const mcpServerHTTPTimeout = 30 * time.Minute

// NewMCPServerCommand creates the mcp-server command: stdio transport by
// default, --port for streamable HTTP.
func NewMCPServerCommand(d *deps) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server exposing the GAS workspace's exec/deploy/sync tools",
		Long: `Run an MCP server that exposes the GAS project as exec, exec_api,
version_deploy, and git_feature tools.

By default the server uses stdio transport. Use --port to run an HTTP
server with streamable transport instead.

Examples:
  ` + constants.CLIName + ` mcp-server                # stdio transport
  ` + constants.CLIName + ` mcp-server --port 8080     # HTTP transport on :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.mcpServer == nil {
				return fmt.Errorf("mcp server dependencies failed to initialize")
			}
			server := d.mcpServer.Build(constants.CLIName, cmd.Root().Version)
			if port > 0 {
				return runHTTPServer(server, port)
			}
			mcpLog.Print("MCP server ready on stdio")
			return server.Run(context.Background(), &mcp.StdioTransport{})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run HTTP server on (uses stdio if not specified)")

	return cmd
}

func sanitizeForLog(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	return strings.ReplaceAll(sanitized, "\r", "")
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func loggingHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		sanitizedPath := sanitizeForLog(r.URL.Path)

		mcpLog.Printf("request: %s %s", r.Method, sanitizedPath)
		handler.ServeHTTP(wrapped, r)
		mcpLog.Printf("response: %s %s status=%d duration=%s", r.Method, sanitizedPath, wrapped.statusCode, time.Since(start))
	})
}

// runHTTPServer runs the MCP server with streamable HTTP transport.
func runHTTPServer(server *mcp.Server, port int) error {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		SessionTimeout: 2 * time.Hour,
		Logger:         logger.NewSlogLoggerWithHandler(mcpLog),
	})

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           loggingHandler(handler),
		ReadHeaderTimeout: mcpServerHTTPTimeout,
	}

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Starting MCP server on http://localhost%s", addr)))
	mcpLog.Printf("HTTP server listening on %s", addr)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
