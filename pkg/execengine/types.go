package execengine

import (
	"time"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/infra"
)

// Request is the input to Execute, mirroring the exec tool's parameters
// (spec §4.5, §6).
type Request struct {
	ProjectID        constants.ProjectID
	JSStatement      string
	Environment      constants.Environment
	AutoRedeploy     bool
	ExecutionTimeout time.Duration
	ResponseTimeout  time.Duration
	LogFilter        string
	LogTail          int
	SkipSyncCheck    bool
	AccessToken      string
}

// ExecError is the structured error shape surfaced on the non-throwing
// error path of the response envelope (spec §6).
type ExecError struct {
	Type           string         `json:"type"`
	Message        string         `json:"message"`
	Stack          string         `json:"stack,omitempty"`
	StatusCode     int            `json:"statusCode,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	FunctionCalled string         `json:"function_called,omitempty"`
}

// Result is the full response envelope Execute returns, covering both
// the success and (non-throwing) error shapes from spec §6.
type Result struct {
	Status         string               `json:"status"`
	ProjectID      constants.ProjectID  `json:"scriptId"`
	JSStatement    string               `json:"js_statement"`
	Result         any                  `json:"result,omitempty"`
	LoggerOutput   string               `json:"logger_output"`
	ExecutedAt     time.Time            `json:"executedAt"`
	Environment    constants.Environment `json:"environment"`
	VersionNumber  *int64               `json:"versionNumber,omitempty"`
	IDEUrlHint     string               `json:"ide_url_hint,omitempty"`
	Collision      *gasmodel.DriftReport `json:"collision,omitempty"`
	Hints          []string             `json:"hints,omitempty"`
	Infrastructure *infra.ExecShimStatus `json:"infrastructure,omitempty"`
	Error          *ExecError           `json:"error,omitempty"`
	CookieAuthUsed bool                 `json:"cookieAuthUsed,omitempty"`
	ResponseFile   string               `json:"responseFile,omitempty"`
	FilteredLines  int                  `json:"filteredLines,omitempty"`
	TrimmedLines   int                  `json:"trimmedLines,omitempty"`
}
