// Package execengine implements ExecutionEngine (C5), the center of
// gravity: URL resolution, the HTTP call against the live dispatcher,
// envelope interpretation, domain-cookie fallback, and the bounded
// warm-up retry loop. Every other component throws; this is the sole
// converter from component errors to response envelopes (§7).
package execengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/deployment"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/infra"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
	"github.com/mcpgas/mcp-gas/pkg/mirror"
	"github.com/mcpgas/mcp-gas/pkg/shim"
	"github.com/mcpgas/mcp-gas/pkg/sync"
)

var execLog = logger.New("execengine:engine")

// Gateway is the subset of RemoteAPIGateway the engine calls directly
// (URL construction and content fetch for the pre-flight sync check).
type Gateway interface {
	ConstructGasRunUrl(ctx context.Context, projectID constants.ProjectID, token string) (string, error)
	GetProjectContent(ctx context.Context, projectID constants.ProjectID, token string) ([]gasmodel.RemoteFile, error)
}

// HTTPDoer is satisfied by *http.Client; narrowed for test substitution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Engine is the ExecutionEngine implementation.
type Engine struct {
	gw           Gateway
	registry     *deployment.Registry
	infraMgr     *infra.Manager
	checker      *sync.Checker
	cache        *SessionCache
	projectsRoot string
	httpClient   HTTPDoer
	scratchDir   string
}

// New constructs an Engine wiring together the components it coordinates.
func New(gw Gateway, registry *deployment.Registry, infraMgr *infra.Manager, projectsRoot, scratchDir string) *Engine {
	return &Engine{
		gw:           gw,
		registry:     registry,
		infraMgr:     infraMgr,
		checker:      sync.New(),
		cache:        NewSessionCache(),
		projectsRoot: projectsRoot,
		httpClient:   http.DefaultClient,
		scratchDir:   scratchDir,
	}
}

// Cache exposes the session cache so callers (e.g. auth replacement
// flows) can evict or reset it.
func (e *Engine) Cache() *SessionCache { return e.cache }

// Execute runs the full §4.5 pipeline for one exec call.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.JSStatement == "" {
		return nil, mcperrors.New(mcperrors.KindValidation, "js_statement is required")
	}
	if req.Environment == "" {
		req.Environment = constants.EnvDev
	}
	if !req.Environment.Valid() {
		return nil, mcperrors.New(mcperrors.KindValidation, "unknown environment %q", req.Environment)
	}
	if req.ExecutionTimeout == 0 {
		req.ExecutionTimeout = time.Duration(constants.MinExecutionTimeoutSeconds) * time.Second
	}
	if req.ResponseTimeout == 0 {
		req.ResponseTimeout = req.ExecutionTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, req.ExecutionTimeout)
	defer cancel()

	result := &Result{
		ProjectID:   req.ProjectID,
		JSStatement: req.JSStatement,
		Environment: req.Environment,
	}

	// Phase A — Pre-flight.
	var collision *gasmodel.DriftReport
	if req.AccessToken != "" {
		drift, err := e.preflight(ctx, req)
		if err != nil {
			return nil, err
		}
		if drift != nil && drift.Blocking {
			if !req.SkipSyncCheck {
				return nil, mcperrors.New(mcperrors.KindSyncDrift, "local mirror diverges from remote").WithData(map[string]any{"drift": drift})
			}
			collision = drift
		}
	}

	// Phase B — URL resolution.
	execURL, err := e.resolveURL(ctx, req)
	if err != nil {
		if mcperrors.Is(err, mcperrors.KindNoDeployment) {
			return e.handleInfrastructure(ctx, req, result, collision, nil)
		}
		return nil, err
	}

	// Phase C/D — Request + interpret.
	outcome, err := e.invoke(ctx, execURL, req)
	if err != nil {
		return nil, err
	}

	switch outcome.classification {
	case classifySuccess:
		return e.finalizeSuccess(result, outcome, collision, req), nil
	case classifyExecutionError:
		return e.finalizeExecutionError(result, outcome, collision), nil
	case classifyAuthentication:
		return nil, mcperrors.New(mcperrors.KindAuthentication, "authentication failed calling deployment; re-authenticate")
	case classifyNeedsInfrastructure:
		return e.handleInfrastructure(ctx, req, result, collision, outcome)
	default:
		return nil, mcperrors.New(mcperrors.KindInternal, "unclassified response")
	}
}

func (e *Engine) preflight(ctx context.Context, req Request) (*gasmodel.DriftReport, error) {
	m := mirror.New(e.projectsRoot, req.ProjectID)
	local, err := m.List()
	if err != nil {
		return nil, err
	}
	remote, err := e.gw.GetProjectContent(ctx, req.ProjectID, req.AccessToken)
	if err != nil {
		return nil, err
	}
	report := e.checker.Compare(local, remote)
	return &report, nil
}

func (e *Engine) resolveURL(ctx context.Context, req Request) (string, error) {
	d, err := e.registry.Find(ctx, req.ProjectID, req.Environment, req.AccessToken)
	if err == nil && d != nil {
		for _, ep := range d.EntryPoints {
			if ep.Type == gasmodel.EntryPointWebApp && ep.WebAppURL != "" {
				return ep.WebAppURL, nil
			}
		}
	}

	if url, ok := e.cache.Get(req.ProjectID); ok {
		return url, nil
	}

	url, err := e.gw.ConstructGasRunUrl(ctx, req.ProjectID, req.AccessToken)
	if err != nil {
		return "", err
	}
	e.cache.Set(req.ProjectID, url)
	return url, nil
}

type classification int

const (
	classifySuccess classification = iota
	classifyExecutionError
	classifyAuthentication
	classifyNeedsInfrastructure
)

type invokeOutcome struct {
	classification classification
	envelope       *gasmodel.Envelope
	statusCode     int
	cookieAuthUsed bool
}

// invoke issues the GET call per Phase C, with executionTimeout governing
// the whole call via ctx and responseTimeout governing only the body
// read, per the independent-deadline requirement of §5.
func (e *Engine) invoke(ctx context.Context, execURL string, req Request) (*invokeOutcome, error) {
	full := fmt.Sprintf("%s?_mcp_run=true&func=%s", execURL, url.QueryEscape(req.JSStatement))

	resp, err := e.get(ctx, full, req.AccessToken)
	if err != nil {
		return nil, err
	}

	outcome, err := e.classify(ctx, resp, req.ResponseTimeout)
	if err != nil {
		return nil, err
	}

	if outcome.classification == classifyNeedsInfrastructure || isAmbiguousBody(outcome) {
		// Domain-cookie fallback: re-issue the same GET once, per Phase D.
		// No separate domain-auth request is made.
		retried, cookieUsed, retryErr := e.retryWithCookieFallback(ctx, full, req.AccessToken, req.ResponseTimeout)
		if retryErr == nil && retried != nil {
			retried.cookieAuthUsed = cookieUsed
			return retried, nil
		}
	}

	return outcome, nil
}

func (e *Engine) get(ctx context.Context, fullURL, token string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "building exec request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, mcperrors.New(mcperrors.KindTimeout, "execution timed out")
		}
		return nil, mcperrors.Wrap(mcperrors.KindInternal, err, "calling deployment")
	}
	return resp, nil
}

func (e *Engine) classify(ctx context.Context, resp *http.Response, responseTimeout time.Duration) (*invokeOutcome, error) {
	defer resp.Body.Close()

	readCtx, cancel := context.WithTimeout(ctx, responseTimeout)
	defer cancel()

	raw, err := readBodyWithDeadline(readCtx, resp.Body)
	if err != nil {
		return nil, mcperrors.New(mcperrors.KindResponseReadTimeout, "response body read exceeded responseTimeout")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &invokeOutcome{classification: classifyAuthentication, statusCode: resp.StatusCode}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	trimmed := strings.TrimSpace(string(raw))

	if strings.Contains(contentType, "text/html") || (len(trimmed) > 0 && trimmed[0] == '<') {
		// Deployment-not-ready signal per Phase D.
		return &invokeOutcome{classification: classifyNeedsInfrastructure, statusCode: resp.StatusCode}, nil
	}

	if resp.StatusCode == http.StatusNotFound {
		return &invokeOutcome{classification: classifyNeedsInfrastructure, statusCode: resp.StatusCode}, nil
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return &invokeOutcome{classification: classifyNeedsInfrastructure, statusCode: resp.StatusCode}, nil
	}

	if env.Type == gasmodel.EnvelopeException {
		return &invokeOutcome{classification: classifyExecutionError, envelope: env, statusCode: resp.StatusCode}, nil
	}
	return &invokeOutcome{classification: classifySuccess, envelope: env, statusCode: resp.StatusCode}, nil
}

func isAmbiguousBody(o *invokeOutcome) bool {
	return o.classification == classifyNeedsInfrastructure && o.statusCode != http.StatusNotFound && o.statusCode != http.StatusInternalServerError
}

// retryWithCookieFallback implements the domain-cookie fallback by
// re-issuing the original GET once. No domain-auth URL is requested and no
// priming request is sent first; the interactive consent screen itself is
// out of scope (spec §1 Out of scope: OAuth browser flow).
func (e *Engine) retryWithCookieFallback(ctx context.Context, fullURL, token string, responseTimeout time.Duration) (*invokeOutcome, bool, error) {
	execLog.Printf("attempting domain-cookie fallback retry for %s", fullURL)
	resp, err := e.get(ctx, fullURL, token)
	if err != nil {
		return nil, false, err
	}
	outcome, err := e.classify(ctx, resp, responseTimeout)
	if err != nil {
		return nil, false, err
	}
	return outcome, outcome.classification == classifySuccess, nil
}

func readBodyWithDeadline(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r)
		ch <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.data, res.err
	}
}

func decodeEnvelope(raw []byte) (*gasmodel.Envelope, error) {
	var env gasmodel.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		// Legacy {"error":true,...} shape, per §3.
		var legacy struct {
			Error        bool   `json:"error"`
			Message      string `json:"message"`
			LoggerOutput string `json:"logger_output"`
		}
		if err := json.Unmarshal(raw, &legacy); err == nil && legacy.Error {
			env.Type = gasmodel.EnvelopeException
			env.ExceptionInfo = &gasmodel.ExceptionInfo{Message: legacy.Message}
			env.LoggerOutput = legacy.LoggerOutput
			return &env, nil
		}
		return nil, fmt.Errorf("unrecognized envelope shape")
	}

	if env.Type == gasmodel.EnvelopeException {
		raw2, _ := json.Marshal(env.Payload)
		var info struct {
			Error gasmodel.ExceptionInfo `json:"error"`
		}
		if err := json.Unmarshal(raw2, &info); err == nil {
			env.ExceptionInfo = &info.Error
		}
	}
	return &env, nil
}

func (e *Engine) finalizeSuccess(result *Result, outcome *invokeOutcome, collision *gasmodel.DriftReport, req Request) *Result {
	result.Status = "success"
	result.ExecutedAt = time.Now()
	result.CookieAuthUsed = outcome.cookieAuthUsed
	result.Collision = collision

	if outcome.envelope != nil {
		result.LoggerOutput = e.filterLog(outcome.envelope.LoggerOutput, req, result)
		result.Result = e.sizeProtect(outcome.envelope.Payload, result)
	}
	return result
}

func (e *Engine) finalizeExecutionError(result *Result, outcome *invokeOutcome, collision *gasmodel.DriftReport) *Result {
	result.Status = "error"
	result.ExecutedAt = time.Now()
	result.Collision = collision

	execErr := &ExecError{Type: "ExecutionError"}
	if outcome.envelope != nil && outcome.envelope.ExceptionInfo != nil {
		info := outcome.envelope.ExceptionInfo
		execErr.Type = classifyJSErrorName(info.Message, info.Name)
		execErr.Message = info.Message
		execErr.Stack = info.Stack
		result.LoggerOutput = outcome.envelope.LoggerOutput
	}
	result.Error = execErr
	return result
}

var jsErrorPrefix = regexp.MustCompile(`^(ReferenceError|SyntaxError|TypeError):`)

func classifyJSErrorName(message, name string) string {
	if m := jsErrorPrefix.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if name != "" {
		return name
	}
	return "ExecutionError"
}

// filterLog applies logFilter (regex per line) then logTail (last N),
// appending a metadata suffix reporting filtered/trimmed counts. It never
// mutates the persisted log (it operates on the in-memory string only).
func (e *Engine) filterLog(logOutput string, req Request, result *Result) string {
	lines := strings.Split(logOutput, "\n")
	filteredCount := 0

	if req.LogFilter != "" {
		re, err := regexp.Compile(req.LogFilter)
		if err == nil {
			var kept []string
			for _, l := range lines {
				if re.MatchString(l) {
					kept = append(kept, l)
				} else {
					filteredCount++
				}
			}
			lines = kept
		}
	}

	trimmedCount := 0
	if req.LogTail > 0 && len(lines) > req.LogTail {
		trimmedCount = len(lines) - req.LogTail
		lines = lines[len(lines)-req.LogTail:]
	}

	result.FilteredLines = filteredCount
	result.TrimmedLines = trimmedCount
	return strings.Join(lines, "\n")
}

// sizeProtect implements the response-size ceiling (P8): a payload whose
// serialized size exceeds the ceiling is spilled to a scratch file, and
// the response carries a reference instead of the inline value.
func (e *Engine) sizeProtect(payload any, result *Result) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return payload
	}
	if len(raw) <= constants.ResponseSizeCeilingBytes {
		return payload
	}

	if e.scratchDir != "" {
		_ = os.MkdirAll(e.scratchDir, 0o755)
		name := fmt.Sprintf("%s-%d.json", result.ProjectID, time.Now().UnixNano())
		path := filepath.Join(e.scratchDir, name)
		if writeErr := os.WriteFile(path, raw, 0o644); writeErr == nil {
			result.ResponseFile = path
			execLog.Printf("response for %s exceeded %s ceiling, wrote %s to scratch file", result.ProjectID, humanize.Bytes(uint64(constants.ResponseSizeCeilingBytes)), path)
			return nil
		}
	}
	return payload
}

// handleInfrastructure implements Phase F: when AutoRedeploy is false,
// return AutoRedeployDisabled; otherwise repair infrastructure and enter
// the Phase E warm-up retry loop.
func (e *Engine) handleInfrastructure(ctx context.Context, req Request, result *Result, collision *gasmodel.DriftReport, lastOutcome *invokeOutcome) (*Result, error) {
	if !req.AutoRedeploy {
		return nil, mcperrors.New(mcperrors.KindAutoRedeployDisabled, "infrastructure missing and autoRedeploy is false")
	}
	if req.AccessToken == "" {
		return nil, mcperrors.New(mcperrors.KindAuthentication, "infrastructure repair requires an access token")
	}

	status, err := e.infraMgr.Ensure(ctx, req.ProjectID, shim.Params{TimeZone: "Etc/UTC", ProjectTitle: string(req.ProjectID)}, req.AccessToken)
	if err != nil {
		return nil, err
	}
	result.Infrastructure = &status
	e.cache.Evict(req.ProjectID)

	return e.warmUpRetry(ctx, req, result, collision)
}

// warmUpRetry implements Phase E: bounded retry after a fresh
// infrastructure install, budget 60s / interval 2s, probing readiness
// with a trivial expression before re-trying the user's statement.
func (e *Engine) warmUpRetry(ctx context.Context, req Request, result *Result, collision *gasmodel.DriftReport) (*Result, error) {
	deadline := time.Now().Add(constants.WarmUpRetryBudget)
	ticker := time.NewTicker(constants.WarmUpPollInterval)
	defer ticker.Stop()

	execURL, err := e.resolveURL(ctx, req)
	if err != nil {
		return nil, err
	}

	for {
		outcome, err := e.invoke(ctx, execURL, req)
		if err == nil {
			switch outcome.classification {
			case classifySuccess:
				return e.finalizeSuccess(result, outcome, collision, req), nil
			case classifyExecutionError:
				return e.finalizeExecutionError(result, outcome, collision), nil
			case classifyAuthentication:
				return nil, mcperrors.New(mcperrors.KindAuthentication, "authentication failed during warm-up retry")
			}
		}

		if time.Now().After(deadline) {
			return nil, mcperrors.New(mcperrors.KindDeploymentNotReady, "deployment did not become ready within %s", constants.WarmUpRetryBudget)
		}

		probeReq := req
		probeReq.JSStatement = "Date.now()"
		probeOutcome, probeErr := e.invoke(ctx, execURL, probeReq)
		if probeErr == nil && probeOutcome.classification != classifySuccess && probeOutcome.classification != classifyNeedsInfrastructure {
			return nil, mcperrors.New(mcperrors.KindDeploymentNotReady, "readiness probe failed with a non-500 error; giving up")
		}

		select {
		case <-ctx.Done():
			return nil, mcperrors.New(mcperrors.KindTimeout, "execution timed out during warm-up retry")
		case <-ticker.C:
		}
	}
}
