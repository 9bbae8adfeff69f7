package mcpconst

import "net/http"

// SessionIDHeader carries the streamable HTTP session id.
var SessionIDHeader = http.CanonicalHeaderKey("mcp-session-id")

// ProtocolVersion is the MCP revision announced by the client helper.
const ProtocolVersion = "2025-03-26"

// JsonRpcMethod is a typed string for JSON-RPC method names.
type JsonRpcMethod string

// Defines the standard JSON-RPC methods for MCP.
const (
	Initialize               JsonRpcMethod = "initialize"
	NotificationsInitialized JsonRpcMethod = "notifications/initialized"
	ToolsList                JsonRpcMethod = "tools/list"
	ToolsCall                JsonRpcMethod = "tools/call"
	Ping                     JsonRpcMethod = "ping"
)

// Tool names served by fabrik-mcp.
const (
	ToolEcho             = "echo"
	ToolAdd              = "add"
	ToolProcessRAGChunks = "process_rag_chunks"
	ToolGetAgentConfig   = "get_agent_config"
	ToolGeminiWithConfig = "gemini_with_config"
)
