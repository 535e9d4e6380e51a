package app

import (
	"context"

	"github.com/example/courier/internal/core/delegate"
	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/secondary"
)

// Router correlates incoming mail with the recipient agent's waiting
// flows.
type Router struct {
	flows secondary.FlowRepository
}

// NewRouter creates a new router.
func NewRouter(flows secondary.FlowRepository) *Router {
	return &Router{flows: flows}
}

// Route describes where an inbound email belongs: an existing waiting
// flow, or a fresh one.
type Route struct {
	// Flow is the waiting flow to resume, nil when the email starts a
	// new one.
	Flow  *flow.Flow
	Event flow.ResumeEvent
}

// Resolve finds the waiting flow an email resumes, if any. The match is
// evaluated with the same guard the engine enforces, so routing never
// selects a flow the resume would then reject. Flows are checked oldest
// first and the first match wins.
func (r *Router) Resolve(ctx context.Context, agent models.Agent, email models.Email, senderIsAgent bool) (*Route, error) {
	event := buildResumeEvent(email, senderIsAgent)

	waiting, err := r.flows.ListByAgent(ctx, agent.ID, flow.StateWaiting)
	if err != nil {
		return nil, err
	}

	for _, f := range waiting {
		if guard := flow.CanResume(f, event); guard.Allowed {
			return &Route{Flow: f, Event: event}, nil
		}
	}
	return &Route{Event: event}, nil
}

// buildResumeEvent classifies an email as a user answer or an agent
// response. A subject token or an agent sender marks it as
// agent_response; the conversation id rides along as the fallback key
// for replies whose token was stripped in transit.
func buildResumeEvent(email models.Email, senderIsAgent bool) flow.ResumeEvent {
	requestID := delegate.ExtractRequestID(email.Subject)

	kind := flow.WaitEmailResponse
	if requestID != "" || senderIsAgent {
		kind = flow.WaitAgentResponse
	}

	return flow.ResumeEvent{
		Kind:           kind,
		ConversationID: email.ConversationID,
		RequestID:      requestID,
		SourceAgentID:  "",
	}
}
