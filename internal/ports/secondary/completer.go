package secondary

import "context"

// Chat message roles at the completion boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one entry of the conversational context handed to the
// model.
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionRequest carries the assembled prompt for one reasoning
// step.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
}

// Completer defines the secondary port for the agent's language-model
// step. The response text is expected to carry the structured turn
// payload; parsing it is the engine's job, not the adapter's.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
