//go:build !integration

package cli

import (
	"strings"
	"testing"

	"github.com/mcpgas/mcp-gas/pkg/console"
	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

func TestDeployStatusTreeIncludesEveryEnvironment(t *testing.T) {
	version := int64(3)
	status := map[constants.Environment]gasmodel.EnvironmentStatus{
		constants.EnvDev:     {DeploymentID: "dev-dep", URL: "https://example.com/dev"},
		constants.EnvStaging: {DeploymentID: "staging-dep", VersionNumber: &version, URL: "https://example.com/staging"},
	}

	root := deployStatusTree(constants.ProjectID("abc123"), status)

	if root.Value != "abc123" {
		t.Errorf("root.Value = %q, want abc123", root.Value)
	}
	if len(root.Children) != 3 {
		t.Fatalf("len(root.Children) = %d, want 3 (dev, staging, prod)", len(root.Children))
	}

	rendered := console.RenderTree(root)
	if !strings.Contains(rendered, "dev-dep") {
		t.Error("rendered tree missing dev deployment id")
	}
	if !strings.Contains(rendered, "version: 3") {
		t.Error("rendered tree missing staging version number")
	}
	if !strings.Contains(rendered, "not deployed") {
		t.Error("rendered tree missing prod not-deployed marker")
	}
}
