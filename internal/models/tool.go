package models

import "encoding/json"

// ToolDescriptor is the caller-facing shape of a tool advertised by a server.
// InputSchema is kept as raw JSON so the remote schema passes through untouched.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolArguments is the schema-less argument map forwarded to a remote tool
type ToolArguments map[string]interface{}

// ToolResult is the remote outcome of a tool invocation. Content and
// StructuredContent keep the remote JSON verbatim.
type ToolResult struct {
	Content           json.RawMessage `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"is_error"`
	Error             string          `json:"error,omitempty"`
}

// ToolListResponse wraps the tools of one server
type ToolListResponse struct {
	ServerId string           `json:"server_id"`
	Tools    []ToolDescriptor `json:"tools"`
	Total    int              `json:"total"`
}

// ExecuteToolResponse is the result envelope of POST .../execute
type ExecuteToolResponse struct {
	ServerId string `json:"server_id"`
	Tool     string `json:"tool"`
	ToolResult
}
