// Package gasapi implements RemoteAPIGateway (C1): a narrow, typed wrapper
// over the Google Apps Script REST surface (script.googleapis.com). No
// retry policy lives here — every operation either returns a parsed
// result or a *mcperrors.Error; retrying is the caller's job.
package gasapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

var apiLog = logger.New("gasapi:gateway")

const (
	baseURL = "https://script.googleapis.com/v1"
)

// Gateway is the RemoteAPIGateway implementation. It holds only an HTTP
// client; tokens are supplied per call, matching the caller-supplied-or-
// session token model (spec §4.5 Phase A.1).
type Gateway struct {
	httpClient *http.Client
	baseURL    string
}

// New constructs a Gateway using http.DefaultClient's transport settings.
func New() *Gateway {
	return &Gateway{httpClient: http.DefaultClient, baseURL: baseURL}
}

// NewWithClient constructs a Gateway against a custom *http.Client and
// base URL, for tests (httptest.Server).
func NewWithClient(client *http.Client, base string) *Gateway {
	return &Gateway{httpClient: client, baseURL: base}
}

func (g *Gateway) do(ctx context.Context, method, path, token string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bodyReader(body))
	if err != nil {
		return nil, 0, mcperrors.Wrap(mcperrors.KindInternal, err, "building request to %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, mcperrors.Wrap(mcperrors.KindInternal, err, "calling %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, mcperrors.Wrap(mcperrors.KindInternal, err, "reading response body for %s %s", method, path)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return raw, resp.StatusCode, mcperrors.New(mcperrors.KindAuthentication, "request to %s returned %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return raw, resp.StatusCode, mcperrors.New(mcperrors.KindInternal, "request to %s returned %d: %s", path, resp.StatusCode, truncate(string(raw), 500))
	}

	contentType := resp.Header.Get("Content-Type")
	if !looksLikeJSON(contentType, raw) {
		return nil, resp.StatusCode, mcperrors.New(mcperrors.KindInternal, "non-JSON body at 2xx boundary from %s %s", method, path)
	}

	return raw, resp.StatusCode, nil
}

func bodyReader(body []byte) *strings.Reader {
	if body == nil {
		return strings.NewReader("")
	}
	return strings.NewReader(string(body))
}

// looksLikeJSON tolerates both a real application/json content type and
// JSON embedded inside a text body, per spec §4.1's "tolerates both
// application/json and JSON-in-text-bodies".
func looksLikeJSON(contentType string, raw []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(raw))
	return gjson.Valid(trimmed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetProjectContent fetches the full file list of a project.
func (g *Gateway) GetProjectContent(ctx context.Context, projectID constants.ProjectID, token string) ([]gasmodel.RemoteFile, error) {
	raw, _, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/content", projectID), token, nil)
	if err != nil {
		return nil, err
	}

	var files []gasmodel.RemoteFile
	result := gjson.GetBytes(raw, "files")
	result.ForEach(func(_, value gjson.Result) bool {
		files = append(files, gasmodel.RemoteFile{
			Name:   value.Get("name").String(),
			Type:   constants.FileType(value.Get("type").String()),
			Source: value.Get("source").String(),
		})
		return true
	})
	return files, nil
}

// UpdateProjectContent replaces the entire file list of a project.
func (g *Gateway) UpdateProjectContent(ctx context.Context, projectID constants.ProjectID, files []gasmodel.RemoteFile, token string) error {
	body, err := encodeFiles(files)
	if err != nil {
		return mcperrors.Wrap(mcperrors.KindInternal, err, "encoding project content")
	}
	_, _, err = g.do(ctx, http.MethodPut, fmt.Sprintf("/projects/%s/content", projectID), token, body)
	return err
}

// UpdateFile upserts a single file by reading the full project, merging
// in the new content, and rewriting the whole list — GAS has no
// single-file write endpoint (see "UpdateFile semantics" in DESIGN.md).
func (g *Gateway) UpdateFile(ctx context.Context, projectID constants.ProjectID, name, source string, ft constants.FileType, token string) error {
	files, err := g.GetProjectContent(ctx, projectID, token)
	if err != nil {
		return err
	}

	found := false
	for i, f := range files {
		if f.Name == name {
			files[i].Source = source
			files[i].Type = ft
			found = true
			break
		}
	}
	if !found {
		files = append(files, gasmodel.RemoteFile{Name: name, Type: ft, Source: source})
	}

	return g.UpdateProjectContent(ctx, projectID, files, token)
}

func encodeFiles(files []gasmodel.RemoteFile) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	for i, f := range files {
		prefix := fmt.Sprintf("files.%d", i)
		body, err = sjson.SetBytes(body, prefix+".name", f.Name)
		if err != nil {
			return nil, err
		}
		body, err = sjson.SetBytes(body, prefix+".type", string(f.Type))
		if err != nil {
			return nil, err
		}
		body, err = sjson.SetBytes(body, prefix+".source", f.Source)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// ListDeployments returns every deployment of a project, tagged or not.
func (g *Gateway) ListDeployments(ctx context.Context, projectID constants.ProjectID, token string) ([]gasmodel.Deployment, error) {
	raw, _, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/deployments", projectID), token, nil)
	if err != nil {
		return nil, err
	}

	var deployments []gasmodel.Deployment
	gjson.GetBytes(raw, "deployments").ForEach(func(_, value gjson.Result) bool {
		deployments = append(deployments, parseDeployment(value))
		return true
	})
	return deployments, nil
}

func parseDeployment(value gjson.Result) gasmodel.Deployment {
	d := gasmodel.Deployment{
		DeploymentID: value.Get("deploymentId").String(),
	}
	config := value.Get("deploymentConfig")
	d.Description = config.Get("description").String()
	if config.Get("versionNumber").Exists() {
		v := config.Get("versionNumber").Int()
		d.VersionNumber = &v
	}
	value.Get("entryPoints").ForEach(func(_, ep gjson.Result) bool {
		entry := gasmodel.EntryPoint{Type: gasmodel.EntryPointType(ep.Get("entryPointType").String())}
		if entry.Type == gasmodel.EntryPointWebApp {
			entry.WebAppURL = ep.Get("webApp.url").String()
		}
		d.EntryPoints = append(d.EntryPoints, entry)
		return true
	})
	return d
}

// CreateDeployment creates a new deployment. versionNumber nil means HEAD.
func (g *Gateway) CreateDeployment(ctx context.Context, projectID constants.ProjectID, description string, versionNumber *int64, token string) (gasmodel.Deployment, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "description", description)
	if versionNumber != nil {
		body, _ = sjson.SetBytes(body, "versionNumber", *versionNumber)
	}

	raw, _, err := g.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/deployments", projectID), token, body)
	if err != nil {
		return gasmodel.Deployment{}, err
	}
	return parseDeployment(gjson.ParseBytes(raw)), nil
}

// UpdateDeployment retargets an existing deployment to a new version (or
// HEAD) and/or description.
func (g *Gateway) UpdateDeployment(ctx context.Context, projectID constants.ProjectID, deploymentID string, versionNumber *int64, description string, token string) error {
	body := []byte(`{"deploymentConfig":{}}`)
	body, _ = sjson.SetBytes(body, "deploymentConfig.description", description)
	if versionNumber != nil {
		body, _ = sjson.SetBytes(body, "deploymentConfig.versionNumber", *versionNumber)
	}

	_, _, err := g.do(ctx, http.MethodPut, fmt.Sprintf("/projects/%s/deployments/%s", projectID, deploymentID), token, body)
	return err
}

// CreateVersion creates a new immutable snapshot of the project's current
// content.
func (g *Gateway) CreateVersion(ctx context.Context, projectID constants.ProjectID, description, token string) (gasmodel.Version, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "description", description)

	raw, _, err := g.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/versions", projectID), token, body)
	if err != nil {
		return gasmodel.Version{}, err
	}
	result := gjson.ParseBytes(raw)
	return gasmodel.Version{
		VersionNumber: result.Get("versionNumber").Int(),
		Description:   result.Get("description").String(),
	}, nil
}

// ListProjects lists script projects visible to the token, up to pageSize.
func (g *Gateway) ListProjects(ctx context.Context, pageSize int, token string) ([]gasmodel.ProjectHeader, error) {
	raw, _, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/projects?pageSize=%d", pageSize), token, nil)
	if err != nil {
		return nil, err
	}

	var headers []gasmodel.ProjectHeader
	gjson.GetBytes(raw, "projects").ForEach(func(_, value gjson.Result) bool {
		headers = append(headers, gasmodel.ProjectHeader{
			ProjectID: constants.ProjectID(value.Get("scriptId").String()),
			Title:     value.Get("title").String(),
		})
		return true
	})
	return headers, nil
}

// ConstructGasRunUrl resolves any existing web-app entry point of the
// project to a URL, failing with NoDeployment if none exists.
func (g *Gateway) ConstructGasRunUrl(ctx context.Context, projectID constants.ProjectID, token string) (string, error) {
	deployments, err := g.ListDeployments(ctx, projectID, token)
	if err != nil {
		return "", err
	}
	for _, d := range deployments {
		for _, ep := range d.EntryPoints {
			if ep.Type == gasmodel.EntryPointWebApp && ep.WebAppURL != "" {
				apiLog.Printf("resolved web app url for project %s via deployment %s", projectID, d.DeploymentID)
				return ep.WebAppURL, nil
			}
		}
	}
	return "", mcperrors.New(mcperrors.KindNoDeployment, "no web app deployment found for project %s", projectID)
}
