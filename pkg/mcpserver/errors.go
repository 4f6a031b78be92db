package mcpserver

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

// toJSONRPCError is the sole conversion point from the internal tagged-sum
// error kinds to the wire jsonrpc.Error shape. No other package should
// construct a jsonrpc.Error directly.
func toJSONRPCError(err error) *jsonrpc.Error {
	if err == nil {
		return nil
	}

	mcpErr, ok := mcperrors.As(err)
	if !ok {
		return &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
	}

	code := jsonrpc.CodeInternalError
	switch mcpErr.Kind {
	case mcperrors.KindValidation:
		code = jsonrpc.CodeInvalidParams
	case mcperrors.KindAuthentication, mcperrors.KindSyncDrift, mcperrors.KindNoDeployment,
		mcperrors.KindDeploymentNotReady, mcperrors.KindAutoRedeployDisabled:
		code = jsonrpc.CodeInvalidRequest
	}

	return &jsonrpc.Error{
		Code:    code,
		Message: mcpErr.Error(),
		Data:    errorData(mcpErr),
	}
}

func errorData(mcpErr *mcperrors.Error) json.RawMessage {
	payload := map[string]any{"kind": string(mcpErr.Kind)}
	for k, v := range mcpErr.Data {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}
