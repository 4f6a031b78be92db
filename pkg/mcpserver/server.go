// Package mcpserver exposes the GAS workspace as an MCP tool surface:
// exec, exec_api, version_deploy, and git_feature (spec §6). It is the
// sole boundary where internal tagged-sum errors become jsonrpc.Error.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpgas/mcp-gas/pkg/config"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/execengine"
	"github.com/mcpgas/mcp-gas/pkg/gitworkflow"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
	"github.com/mcpgas/mcp-gas/pkg/mirror"
	"github.com/mcpgas/mcp-gas/pkg/stringutil"
)

var mcpLog = logger.New("mcpserver:server")

// Server wires the component layer into an *mcp.Server tool surface.
type Server struct {
	eng          *execengine.Engine
	registry     *deployment.Registry
	cfg          *config.Store
	projectsRoot string
}

// New constructs a Server. projectsRoot is the default root under which
// per-project local mirrors live (§4.7).
func New(eng *execengine.Engine, registry *deployment.Registry, cfg *config.Store, projectsRoot string) *Server {
	return &Server{eng: eng, registry: registry, cfg: cfg, projectsRoot: projectsRoot}
}

func (s *Server) token(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.cfg.AccessToken()
}

// Build constructs the *mcp.Server with every tool registered.
func (s *Server) Build(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		Logger: logger.NewSlogLoggerWithHandler(mcpLog),
	})

	s.registerExec(server)
	s.registerExecAPI(server)
	s.registerVersionDeploy(server)
	s.registerGitFeature(server)

	return server
}

type execArgs struct {
	ScriptID         string `json:"scriptId" jsonschema:"The 44-character Apps Script project id"`
	JSStatement      string `json:"js_statement" jsonschema:"JavaScript statement(s) to evaluate in the project's context"`
	Environment      string `json:"environment,omitempty" jsonschema:"Target environment: dev, staging, or prod"`
	AutoRedeploy     bool   `json:"autoRedeploy,omitempty" jsonschema:"Repair and redeploy infrastructure automatically when it is missing"`
	ExecutionTimeout int    `json:"executionTimeout,omitempty" jsonschema:"Overall execution budget in seconds"`
	ResponseTimeout  int    `json:"responseTimeout,omitempty" jsonschema:"Response body read budget in seconds"`
	LogFilter        string `json:"logFilter,omitempty" jsonschema:"Regular expression; only matching logger_output lines are kept"`
	LogTail          int    `json:"logTail,omitempty" jsonschema:"Keep only the last N logger_output lines after filtering"`
	SkipSyncCheck    bool   `json:"skipSyncCheck,omitempty" jsonschema:"Proceed even if the local mirror has diverged from the remote"`
	AccessToken      string `json:"accessToken,omitempty" jsonschema:"OAuth access token; falls back to the configured token store"`
}

func (s *Server) buildRequest(a execArgs) execengine.Request {
	env := constants.Environment(a.Environment)
	if env == "" {
		env = constants.EnvDev
	}
	return execengine.Request{
		ProjectID:        constants.ProjectID(a.ScriptID),
		JSStatement:      a.JSStatement,
		Environment:      env,
		AutoRedeploy:     a.AutoRedeploy,
		ExecutionTimeout: time.Duration(a.ExecutionTimeout) * time.Second,
		ResponseTimeout:  time.Duration(a.ResponseTimeout) * time.Second,
		LogFilter:        a.LogFilter,
		LogTail:          a.LogTail,
		SkipSyncCheck:    a.SkipSyncCheck,
		AccessToken:      s.token(a.AccessToken),
	}
}

func (s *Server) runExec(ctx context.Context, req execengine.Request) (*mcp.CallToolResult, any, error) {
	result, err := s.eng.Execute(ctx, req)
	if err != nil {
		return nil, nil, toJSONRPCError(err)
	}

	raw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindInternal, marshalErr, "marshaling exec result"))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

func (s *Server) registerExec(server *mcp.Server) {
	schema, err := GenerateSchema[execArgs]()
	if err != nil {
		mcpLog.Printf("failed to generate exec schema: %v", err)
	} else {
		_ = AddSchemaDefault(schema, "environment", "dev")
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "exec",
		Description: `Evaluate a JavaScript statement against a deployed Apps Script web app
and return its result together with captured Logger output.`,
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args execArgs) (*mcp.CallToolResult, any, error) {
		mcpLog.Printf("exec: scriptId=%s environment=%s", args.ScriptID, args.Environment)
		return s.runExec(ctx, s.buildRequest(args))
	})
}

type execAPIArgs struct {
	execArgsBase
	FunctionName string   `json:"functionName" jsonschema:"Top-level function (or method, if moduleName is set) to invoke"`
	ModuleName   string   `json:"moduleName,omitempty" jsonschema:"CommonJS module to require before invoking functionName as a method on it"`
	Parameters   []any    `json:"parameters,omitempty" jsonschema:"Positional arguments, JSON-encoded into the generated call"`
}

// execArgsBase factors the fields exec_api shares with exec (spec §6:
// "rest same as exec").
type execArgsBase struct {
	ScriptID         string `json:"scriptId" jsonschema:"The 44-character Apps Script project id"`
	Environment      string `json:"environment,omitempty" jsonschema:"Target environment: dev, staging, or prod"`
	AutoRedeploy     bool   `json:"autoRedeploy,omitempty" jsonschema:"Repair and redeploy infrastructure automatically when it is missing"`
	ExecutionTimeout int    `json:"executionTimeout,omitempty" jsonschema:"Overall execution budget in seconds"`
	ResponseTimeout  int    `json:"responseTimeout,omitempty" jsonschema:"Response body read budget in seconds"`
	LogFilter        string `json:"logFilter,omitempty" jsonschema:"Regular expression; only matching logger_output lines are kept"`
	LogTail          int    `json:"logTail,omitempty" jsonschema:"Keep only the last N logger_output lines after filtering"`
	SkipSyncCheck    bool   `json:"skipSyncCheck,omitempty" jsonschema:"Proceed even if the local mirror has diverged from the remote"`
	AccessToken      string `json:"accessToken,omitempty" jsonschema:"OAuth access token; falls back to the configured token store"`
}

// buildCallExpression generates the JS statement exec_api delegates to
// exec. functionName and moduleName are embedded directly into the
// generated statement, so each path segment is forced into a safe
// JavaScript identifier first to rule out statement injection.
func buildCallExpression(functionName, moduleName string, parameters []any) (string, error) {
	parts := make([]string, len(parameters))
	for i, p := range parameters {
		raw, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("encoding parameter %d: %w", i, err)
		}
		parts[i] = string(raw)
	}
	argList := strings.Join(parts, ", ")

	safeFunction := stringutil.SanitizeParameterName(functionName)

	if moduleName != "" {
		segments := strings.Split(moduleName, "/")
		for i, seg := range segments {
			segments[i] = stringutil.SanitizeParameterName(seg)
		}
		return fmt.Sprintf(`require("%s").%s(%s);`, strings.Join(segments, "/"), safeFunction, argList), nil
	}
	return fmt.Sprintf("%s(%s);", safeFunction, argList), nil
}

func (s *Server) registerExecAPI(server *mcp.Server) {
	schema, err := GenerateSchema[execAPIArgs]()
	if err != nil {
		mcpLog.Printf("failed to generate exec_api schema: %v", err)
	} else {
		_ = AddSchemaDefault(schema, "environment", "dev")
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "exec_api",
		Description: `Invoke a named function (optionally via a require()'d CommonJS module) and delegate to exec.`,
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args execAPIArgs) (*mcp.CallToolResult, any, error) {
		statement, err := buildCallExpression(args.FunctionName, args.ModuleName, args.Parameters)
		if err != nil {
			return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindValidation, err, "building call expression"))
		}

		mcpLog.Printf("exec_api: scriptId=%s functionName=%s moduleName=%s", args.ScriptID, args.FunctionName, args.ModuleName)

		execReq := s.buildRequest(execArgs{
			ScriptID:         args.ScriptID,
			JSStatement:      statement,
			Environment:      args.Environment,
			AutoRedeploy:     args.AutoRedeploy,
			ExecutionTimeout: args.ExecutionTimeout,
			ResponseTimeout:  args.ResponseTimeout,
			LogFilter:        args.LogFilter,
			LogTail:          args.LogTail,
			SkipSyncCheck:    args.SkipSyncCheck,
			AccessToken:      args.AccessToken,
		})
		return s.runExec(ctx, execReq)
	})
}

type versionDeployArgs struct {
	Operation   string `json:"operation" jsonschema:"One of status, reset, promote"`
	ScriptID    string `json:"scriptId" jsonschema:"The 44-character Apps Script project id"`
	Environment string `json:"environment,omitempty" jsonschema:"Target environment for promote: dev, staging, or prod"`
	Description string `json:"description,omitempty" jsonschema:"Description to apply when promoting or resetting a deployment"`
	AccessToken string `json:"accessToken,omitempty" jsonschema:"OAuth access token; falls back to the configured token store"`
}

func (s *Server) registerVersionDeploy(server *mcp.Server) {
	schema, err := GenerateSchema[versionDeployArgs]()
	if err != nil {
		mcpLog.Printf("failed to generate version_deploy schema: %v", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "version_deploy",
		Description: `Manage tagged dev/staging/prod deployments for a project: status, reset, or promote.`,
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args versionDeployArgs) (*mcp.CallToolResult, any, error) {
		projectID := constants.ProjectID(args.ScriptID)
		token := s.token(args.AccessToken)

		mcpLog.Printf("version_deploy: operation=%s scriptId=%s", args.Operation, args.ScriptID)

		var payload any
		var opErr error

		switch args.Operation {
		case "status":
			payload, opErr = s.registry.Status(ctx, projectID, token)
		case "reset":
			opErr = s.registry.Reset(ctx, projectID, token)
			payload = map[string]string{"status": "reset"}
		case "promote":
			env := constants.Environment(args.Environment)
			if !env.Valid() {
				opErr = mcperrors.New(mcperrors.KindValidation, "promote requires a valid environment")
				break
			}
			version, err := s.registry.Promote(ctx, projectID, env, args.Description, token)
			if err != nil {
				opErr = err
				break
			}
			payload = map[string]any{"version": version}
		default:
			opErr = mcperrors.New(mcperrors.KindValidation, "unknown operation %q", args.Operation)
		}

		if opErr != nil {
			return nil, nil, toJSONRPCError(opErr)
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindInternal, err, "marshaling version_deploy result"))
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}}}, nil, nil
	})
}

type gitFeatureArgs struct {
	Operation        string `json:"operation" jsonschema:"One of start, commit, push, finish, rollback, list, switch"`
	ScriptID         string `json:"scriptId" jsonschema:"The 44-character Apps Script project id, used to locate the local mirror"`
	FeatureName      string `json:"featureName,omitempty" jsonschema:"Short name for start, becomes llm-feature-<name>"`
	Branch           string `json:"branch,omitempty" jsonschema:"Branch name for finish/rollback/switch"`
	Message          string `json:"message,omitempty" jsonschema:"Commit message for commit"`
	Remote           string `json:"remote,omitempty" jsonschema:"Git remote name, defaults to origin"`
	PushToRemote     bool   `json:"pushToRemote,omitempty" jsonschema:"Push after finish"`
	DeleteAfterMerge *bool  `json:"deleteAfterMerge,omitempty" jsonschema:"Delete the feature branch after finish"`
	ProjectPath      string `json:"projectPath,omitempty" jsonschema:"Explicit local working directory, overriding mirror resolution"`
}

func (s *Server) resolveWorkflowDir(args gitFeatureArgs) (string, error) {
	if args.ProjectPath != "" {
		return args.ProjectPath, nil
	}
	m := mirror.New(s.projectsRoot, constants.ProjectID(args.ScriptID))
	return m.ResolveWorkingDir()
}

func (s *Server) registerGitFeature(server *mcp.Server) {
	schema, err := GenerateSchema[gitFeatureArgs]()
	if err != nil {
		mcpLog.Printf("failed to generate git_feature schema: %v", err)
	} else {
		_ = AddSchemaDefault(schema, "remote", "origin")
		_ = AddSchemaDefault(schema, "deleteAfterMerge", true)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_feature",
		Description: `Drive the auto-branching local Git mirror: start/commit/push/finish(squash)/rollback/list/switch.`,
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args gitFeatureArgs) (*mcp.CallToolResult, any, error) {
		dir, err := s.resolveWorkflowDir(args)
		if err != nil {
			return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindFileSystem, err, "resolving local mirror directory"))
		}

		w := gitworkflow.New(dir)
		remote := args.Remote
		if remote == "" {
			remote = "origin"
		}

		mcpLog.Printf("git_feature: operation=%s scriptId=%s dir=%s", args.Operation, args.ScriptID, dir)

		var payload any
		var opErr error

		switch args.Operation {
		case "start":
			branch, startErr := w.Start(args.FeatureName)
			payload, opErr = map[string]string{"branch": branch}, startErr
		case "commit":
			opErr = w.Commit(args.Message)
			payload = map[string]string{"status": "committed"}
		case "push":
			opErr = w.Push(remote, args.Branch)
			payload = map[string]string{"status": "pushed"}
		case "finish":
			deleteAfterMerge := args.DeleteAfterMerge == nil || *args.DeleteAfterMerge
			result, finishErr := w.Finish(args.Branch, deleteAfterMerge, args.PushToRemote, remote)
			payload, opErr = result, finishErr
		case "rollback":
			result, rollbackErr := w.Rollback(args.Branch)
			payload, opErr = result, rollbackErr
		case "list":
			branches, listErr := w.List()
			payload, opErr = map[string][]string{"branches": branches}, listErr
		case "switch":
			opErr = w.Switch(args.Branch)
			payload = map[string]string{"status": "switched"}
		default:
			opErr = mcperrors.New(mcperrors.KindValidation, "unknown operation %q", args.Operation)
		}

		if opErr != nil {
			return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindInternal, opErr, "git_feature %s", args.Operation))
		}

		raw, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return nil, nil, toJSONRPCError(mcperrors.Wrap(mcperrors.KindInternal, marshalErr, "marshaling git_feature result"))
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}}}, nil, nil
	})
}
