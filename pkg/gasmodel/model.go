// Package gasmodel defines the shared data types that cross component
// boundaries: remote/local file records, deployments, versions, the shim
// response envelope, and the sync-drift report. Only LocalMirror,
// RemoteAPIGateway and ExecutionEngine (for the response envelope)
// construct these from raw bytes; every other component consumes them as
// values.
package gasmodel

import (
	"strings"
	"time"

	"github.com/mcpgas/mcp-gas/pkg/constants"
)

// RemoteFile is one file of a GAS project as returned by getProjectContent.
type RemoteFile struct {
	Name   string              `json:"name"`
	Type   constants.FileType  `json:"type"`
	Source string              `json:"source"`
}

// LocalFile is one file of the on-disk mirror under <root>/<projectId>/.
type LocalFile struct {
	RelativePath string    `json:"relativePath"`
	Content      string    `json:"content"`
	ModTime      time.Time `json:"mtime"`
}

// ToGasName converts a local relative path (e.g. "a/b/c.js") to the GAS
// file name form (e.g. "a/b/c"), per I5: the GAS name never carries the
// extension. Backslashes are normalized to forward slashes first.
func ToGasName(relPath string) (name string, ft constants.FileType, ok bool) {
	relPath = strings.ReplaceAll(relPath, `\`, "/")
	idx := strings.LastIndex(relPath, ".")
	if idx < 0 {
		return "", "", false
	}
	ext := relPath[idx+1:]
	ft, ok = constants.FileTypeFromExtension(ext)
	if !ok {
		return "", "", false
	}
	return relPath[:idx], ft, true
}

// ToLocalPath is the inverse of ToGasName: maps a GAS name + type to the
// local relative path that mirrors it.
func ToLocalPath(name string, ft constants.FileType) string {
	ext := ft.Extension()
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// Deployment is a GAS deployment: HEAD when VersionNumber is nil, else
// pinned to that immutable snapshot.
type Deployment struct {
	DeploymentID   string   `json:"deploymentId"`
	Description    string   `json:"description"`
	VersionNumber  *int64   `json:"versionNumber"`
	EntryPoints    []EntryPoint `json:"entryPoints"`
}

// Environment recovers the tagged environment from the deployment's
// description, per I2.
func (d Deployment) Environment() (constants.Environment, bool) {
	return constants.EnvironmentFromTag(d.Description)
}

// IsHead reports whether this deployment serves current source rather
// than a frozen snapshot.
func (d Deployment) IsHead() bool { return d.VersionNumber == nil }

// EntryPoint is one invocation surface a deployment exposes (web app or
// Executable API); WebAppURL is populated only for EntryPointWebApp.
type EntryPoint struct {
	Type      EntryPointType `json:"entryPointType"`
	WebAppURL string         `json:"webAppUrl,omitempty"`
}

// EntryPointType enumerates the GAS deployment entry point kinds this
// system cares about.
type EntryPointType string

const (
	EntryPointWebApp       EntryPointType = "WEB_APP"
	EntryPointExecutionAPI EntryPointType = "EXECUTION_API"
)

// Version is an immutable numbered snapshot of a project's files.
type Version struct {
	VersionNumber int64  `json:"versionNumber"`
	Description   string `json:"description"`
}

// ProjectHeader is the summary record returned by listProjects.
type ProjectHeader struct {
	ProjectID constants.ProjectID `json:"scriptId"`
	Title     string              `json:"title"`
}

// Envelope is the JSON shape the exec shim dispatcher returns, decoded
// tolerantly (see decodeEnvelope in pkg/execengine) since the remote side may emit either the
// current {type:...} shape or the legacy {error:true,...} shape.
type Envelope struct {
	Type          EnvelopeType     `json:"type"`
	Payload       any              `json:"payload"`
	LoggerOutput  string           `json:"logger_output"`
	ExceptionInfo *ExceptionInfo   `json:"-"`
}

// EnvelopeType tags the two envelope shapes the shim can return.
type EnvelopeType string

const (
	EnvelopeData      EnvelopeType = "data"
	EnvelopeException EnvelopeType = "exception"
)

// ExceptionInfo is the structured error payload of an exception envelope.
type ExceptionInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// DriftClass classifies one file's sync state, per SyncChecker (C6).
type DriftClass string

const (
	DriftInSync     DriftClass = "in_sync"
	DriftLocalStale DriftClass = "local_stale"
	DriftRemoteOnly DriftClass = "remote_only"
	DriftLocalOnly  DriftClass = "local_only"
)

// FileDrift is one file's classification plus, for a bounded number of
// files, the content needed to render a diff.
type FileDrift struct {
	Path          string     `json:"path"`
	Class         DriftClass `json:"class"`
	LocalContent  string     `json:"localContent,omitempty"`
	RemoteContent string     `json:"remoteContent,omitempty"`
	Truncated     bool       `json:"truncated,omitempty"`
}

// DriftReport is the full per-file comparison produced by SyncChecker,
// plus any module-order warnings from its secondary CommonJS-ordering
// responsibility.
type DriftReport struct {
	Files          []FileDrift `json:"files"`
	Blocking       bool        `json:"blocking"`
	OrderWarnings  []string    `json:"orderWarnings,omitempty"`
}

// HasBlockingDrift reports whether any file is classified local_stale,
// which is the only class that blocks execution absent skipSyncCheck.
func (r DriftReport) HasBlockingDrift() bool {
	for _, f := range r.Files {
		if f.Class == DriftLocalStale {
			return true
		}
	}
	return false
}

// EnvironmentStatus is the per-environment triple reported by
// DeploymentRegistry.status.
type EnvironmentStatus struct {
	DeploymentID  string `json:"deploymentId"`
	VersionNumber *int64 `json:"versionNumber"`
	URL           string `json:"url,omitempty"`
}
