// Package toolhttp is the HTTP client for the external tool-execution
// gateway. The engine stays agnostic to which concrete provider
// (kanban, datasafe, calendar, ...) answers a call; this adapter just
// ships the generic execute contract over JSON.
package toolhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/courier/internal/ports/secondary"
)

// Gateway implements secondary.ToolGateway against a remote endpoint.
type Gateway struct {
	endpoint string
	client   *http.Client
}

// NewGateway creates a gateway client for the given execute endpoint.
func NewGateway(endpoint string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Context struct {
		TeamID  string `json:"team_id,omitempty"`
		UserID  string `json:"user_id,omitempty"`
		AgentID string `json:"agent_id"`
	} `json:"context"`
}

type executeResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Execute runs one tool call through the gateway.
func (g *Gateway) Execute(ctx context.Context, toolName string, args map[string]any, tc secondary.ToolContext) (*secondary.ToolResult, error) {
	reqBody := executeRequest{Tool: toolName, Args: args}
	reqBody.Context.TeamID = tc.TeamID
	reqBody.Context.UserID = tc.UserID
	reqBody.Context.AgentID = tc.AgentID

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build tool request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tool gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool gateway returned status %d", resp.StatusCode)
	}

	var body executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode tool response: %w", err)
	}

	return &secondary.ToolResult{
		Success: body.Success,
		Data:    body.Data,
		Summary: body.Summary,
		Error:   body.Error,
	}, nil
}

// Ensure Gateway implements the interface.
var _ secondary.ToolGateway = (*Gateway)(nil)
