package primary

import (
	"context"

	"github.com/example/courier/internal/models"
)

// InboundService defines the primary port for inbound mail handling:
// payload adaptation, policy, routing, and engine dispatch in one
// call. Transport handlers (webhook, spool) call this and always
// acknowledge the provider regardless of the outcome.
type InboundService interface {
	// HandlePayload adapts a raw duck-typed provider payload addressed
	// to the named agent and processes it.
	HandlePayload(ctx context.Context, agentUsername string, payload map[string]any) (*InboundResult, error)

	// HandleEmail processes an already-canonical email for an agent.
	HandleEmail(ctx context.Context, agent models.Agent, email models.Email) (*InboundResult, error)
}

// Inbound outcomes, for logs and operator tooling only. The webhook
// response never discloses them.
const (
	OutcomeStarted   = "started"    // new flow created and executed
	OutcomeResumed   = "resumed"    // waiting flow woken
	OutcomeBlocked   = "blocked"    // policy denied, dropped
	OutcomeDuplicate = "duplicate"  // redelivery of a processed message
	OutcomeMalformed = "malformed"  // canonical fields missing, dropped
	OutcomeRejected  = "rejected"   // matched a flow that refused the event
)

// InboundResult describes what happened to one inbound message.
type InboundResult struct {
	Outcome string
	FlowID  string
	Reason  string
}
