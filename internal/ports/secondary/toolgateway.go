package secondary

import "context"

// ToolContext scopes a tool execution to the requesting agent.
type ToolContext struct {
	TeamID  string
	UserID  string
	AgentID string
}

// ToolResult is the generic outcome of a tool execution.
type ToolResult struct {
	Success bool
	Data    map[string]any
	Summary string
	Error   string
}

// ToolGateway defines the secondary port for tool execution. The
// engine is agnostic to which concrete provider (kanban, calendar,
// ticketing, ...) answers the call.
type ToolGateway interface {
	Execute(ctx context.Context, toolName string, args map[string]any, tc ToolContext) (*ToolResult, error)
}
