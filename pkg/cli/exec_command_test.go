//go:build !integration

package cli

import (
	"testing"
	"time"

	"github.com/mcpgas/mcp-gas/pkg/constants"
)

func TestExecRequestFromFlags(t *testing.T) {
	req := execRequestFromFlags("abc123", "1+1", "staging", "tok", true, 900, 60, "ERROR", 50, true)

	if req.ProjectID != constants.ProjectID("abc123") {
		t.Errorf("ProjectID = %v, want abc123", req.ProjectID)
	}
	if req.Environment != constants.EnvStaging {
		t.Errorf("Environment = %v, want staging", req.Environment)
	}
	if req.ExecutionTimeout != 900*time.Second {
		t.Errorf("ExecutionTimeout = %v, want 900s", req.ExecutionTimeout)
	}
	if req.ResponseTimeout != 60*time.Second {
		t.Errorf("ResponseTimeout = %v, want 60s", req.ResponseTimeout)
	}
	if !req.AutoRedeploy || !req.SkipSyncCheck {
		t.Error("AutoRedeploy/SkipSyncCheck flags not threaded through")
	}
	if req.LogFilter != "ERROR" || req.LogTail != 50 {
		t.Errorf("LogFilter/LogTail = %q/%d, want ERROR/50", req.LogFilter, req.LogTail)
	}
}
