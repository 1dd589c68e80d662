package websocket

import (
	"context"
	"encoding/json"

	"github.com/luciancaetano/ecochat"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
	ID      interface{}            `json:"id"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleJSONRPCMessage answers one JSON-RPC request. Results go back under
// CmdJSONRPC, failures under CmdJSONRPCError.
func (s *Server) handleJSONRPCMessage(client *Client, payload []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendJSONRPCError(client, nil, ecochat.JSONRPCParseError, ecochat.MsgParseError)
		return
	}

	if req.JSONRPC != ecochat.JSONRPCVersion || req.Method == "" {
		s.sendJSONRPCError(client, req.ID, ecochat.JSONRPCInvalidRequest, ecochat.MsgInvalidRequest)
		return
	}

	handler, ok := s.jsonRPCHandlers.Load(req.Method)
	if !ok {
		s.sendJSONRPCError(client, req.ID, ecochat.JSONRPCMethodNotFound, ecochat.MsgMethodNotFound)
		return
	}

	result, err := handler(req.Params)
	if err != nil {
		s.sendJSONRPCError(client, req.ID, ecochat.JSONRPCInternalError, err.Error())
		return
	}

	data, err := json.Marshal(JSONRPCResponse{
		JSONRPC: ecochat.JSONRPCVersion,
		Result:  result,
		ID:      req.ID,
	})
	if err != nil {
		s.sendJSONRPCError(client, req.ID, ecochat.JSONRPCInternalError, ecochat.MsgInternalError)
		return
	}

	if err := client.Send(context.Background(), ecochat.CmdJSONRPC, data); err != nil {
		s.logger.Debug("json-rpc response not delivered", "client_id", client.ID(), "error", err)
	}
}

func (s *Server) sendJSONRPCError(client *Client, id interface{}, code int, message string) {
	data, err := json.Marshal(JSONRPCResponse{
		JSONRPC: ecochat.JSONRPCVersion,
		Error:   &JSONRPCError{Code: code, Message: message},
		ID:      id,
	})
	if err != nil {
		s.logger.Error("marshal json-rpc error response", "error", err)
		return
	}

	if err := client.Send(context.Background(), ecochat.CmdJSONRPCError, data); err != nil {
		s.logger.Debug("json-rpc error not delivered", "client_id", client.ID(), "error", err)
	}
}
