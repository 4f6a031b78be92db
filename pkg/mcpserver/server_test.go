package mcpserver

import (
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/require"

	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

func TestBuildCallExpressionWithModule(t *testing.T) {
	expr, err := buildCallExpression("run", "services/Billing", []any{"acct-1", 3})
	require.NoError(t, err)
	require.Equal(t, `require("services/Billing").run("acct-1", 3);`, expr)
}

func TestBuildCallExpressionWithoutModule(t *testing.T) {
	expr, err := buildCallExpression("doThing", "", nil)
	require.NoError(t, err)
	require.Equal(t, "doThing();", expr)
}

func TestToJSONRPCErrorMapsValidationToInvalidParams(t *testing.T) {
	err := mcperrors.New(mcperrors.KindValidation, "bad input")
	rpcErr := toJSONRPCError(err)
	require.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)
}

func TestToJSONRPCErrorMapsSyncDriftToInvalidRequest(t *testing.T) {
	err := mcperrors.New(mcperrors.KindSyncDrift, "local mirror diverges")
	rpcErr := toJSONRPCError(err)
	require.Equal(t, jsonrpc.CodeInvalidRequest, rpcErr.Code)
}

func TestToJSONRPCErrorFallsBackToInternalForPlainErrors(t *testing.T) {
	rpcErr := toJSONRPCError(errors.New("boom"))
	require.Equal(t, jsonrpc.CodeInternalError, rpcErr.Code)
}
