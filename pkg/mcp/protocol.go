package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision announced by initialize.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// MCP JSON-RPC types
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Tool definition
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// Tool call types
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError"`
}

func textResult(text string) CallToolResult {
	return CallToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

func errorResult(text string) CallToolResult {
	return CallToolResult{Content: []TextContent{{Type: "text", Text: text}}, IsError: true}
}

func rpcError(id any, code int, msg string) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: msg}}
}

// schema builds an object input schema from property name to (type, description).
func schema(props map[string][2]string) map[string]any {
	p := make(map[string]any, len(props))
	for name, td := range props {
		p[name] = map[string]any{"type": td[0], "description": td[1]}
	}
	return map[string]any{"type": "object", "properties": p}
}
