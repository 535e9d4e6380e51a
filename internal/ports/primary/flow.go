// Package primary defines the primary ports (driving adapters) for the
// application: the interfaces the webhook server, spool watcher, and
// CLI call into.
package primary

import (
	"context"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/models"
)

// FlowService defines the primary port for conversation flow
// operations.
type FlowService interface {
	// StartFlow persists a new flow in active state at round 0. It
	// does not execute a round: start and execute are decoupled so
	// policy and validation happen before any tool-execution cost.
	StartFlow(ctx context.Context, req StartFlowRequest) (*flow.Flow, error)

	// ExecuteRound runs reasoning rounds on an active flow until it
	// completes, suspends, or fails.
	ExecuteRound(ctx context.Context, flowID string) (*flow.Flow, error)

	// ResumeFlow wakes a waiting flow with a matching incoming event
	// and immediately executes the next round. Rejects with a defined
	// error when the flow is no longer waiting or the event does not
	// match the suspended condition.
	ResumeFlow(ctx context.Context, flowID string, event flow.ResumeEvent, email models.Email) (*flow.Flow, error)

	// GetFlow retrieves a flow with history.
	GetFlow(ctx context.Context, flowID string) (*flow.Flow, error)

	// ListFlows lists an agent's flows, optionally filtered by state.
	ListFlows(ctx context.Context, agentID string, states ...flow.State) ([]*flow.Flow, error)

	// SweepTimeouts marks expired waiting flows timed_out and sends
	// the optional final notice. Returns the number of flows swept.
	SweepTimeouts(ctx context.Context) (int, error)
}

// StartFlowRequest contains parameters for creating a flow.
type StartFlowRequest struct {
	Agent           models.Agent
	Trigger         models.Email
	TriggerKind     flow.TriggerKind
	Depth           int
	ParentRequestID string
}
