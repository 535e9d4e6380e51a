package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/courier/internal/adapters/mailin"
	"github.com/example/courier/internal/core/delegate"
	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/core/policy"
	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/primary"
	"github.com/example/courier/internal/ports/secondary"
)

// InboundService implements primary.InboundService: adapt, dedup,
// permission, route, dispatch. Every drop decision is logged with its
// reason and never disclosed to the sender.
type InboundService struct {
	directory secondary.DirectoryProvider
	processed secondary.ProcessedMessageStore
	router    *Router
	engine    primary.FlowService
	logger    *slog.Logger
	now       func() time.Time
}

// NewInboundService creates a new inbound service.
func NewInboundService(
	directory secondary.DirectoryProvider,
	processed secondary.ProcessedMessageStore,
	router *Router,
	engine primary.FlowService,
	logger *slog.Logger,
) *InboundService {
	return &InboundService{
		directory: directory,
		processed: processed,
		router:    router,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
}

// HandlePayload adapts a raw provider payload addressed to the named
// agent and processes it.
func (s *InboundService) HandlePayload(ctx context.Context, agentUsername string, payload map[string]any) (*primary.InboundResult, error) {
	dir, err := s.directory.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	agent := dir.AgentByUsername(agentUsername)
	if agent == nil {
		s.logger.Warn("inbound for unknown agent", "agent", agentUsername)
		return &primary.InboundResult{Outcome: primary.OutcomeRejected, Reason: "unknown_agent"}, nil
	}

	email, err := mailin.CanonicalEmail(payload, s.now())
	if err != nil {
		if errors.Is(err, mailin.ErrMalformed) {
			s.logger.Warn("inbound malformed", "agent", agentUsername, "error", err)
			return &primary.InboundResult{Outcome: primary.OutcomeMalformed, Reason: err.Error()}, nil
		}
		return nil, err
	}

	return s.handle(ctx, *agent, email, dir)
}

// HandleEmail processes an already-canonical email for an agent.
func (s *InboundService) HandleEmail(ctx context.Context, agent models.Agent, email models.Email) (*primary.InboundResult, error) {
	dir, err := s.directory.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.handle(ctx, agent, email, dir)
}

func (s *InboundService) handle(ctx context.Context, agent models.Agent, email models.Email, dir *models.Directory) (*primary.InboundResult, error) {
	log := s.logger.With("agent_id", agent.ID, "message_id", email.MessageID)

	if agent.Disabled {
		log.Warn("inbound for disabled agent")
		return &primary.InboundResult{Outcome: primary.OutcomeRejected, Reason: "agent_disabled"}, nil
	}

	// An agent mailing itself would loop through the provider forever.
	if models.BareAddress(email.From) == models.BareAddress(agent.Address) {
		log.Warn("inbound from self dropped")
		return &primary.InboundResult{Outcome: primary.OutcomeRejected, Reason: "self_addressed"}, nil
	}

	first, err := s.processed.MarkProcessed(ctx, agent.ID, email.MessageID)
	if err != nil {
		return nil, err
	}
	if !first {
		log.Info("inbound duplicate dropped")
		return &primary.InboundResult{Outcome: primary.OutcomeDuplicate}, nil
	}

	if res := policy.Evaluate(policy.DirectionInbound, agent, email.From, dir); !res.Allowed {
		log.Warn("inbound blocked", "from", models.BareAddress(email.From), "reason", res.Reason)
		return &primary.InboundResult{Outcome: primary.OutcomeBlocked, Reason: res.Reason}, nil
	}

	senderIsAgent := dir.AgentByUsername(models.LocalPart(email.From)) != nil

	route, err := s.router.Resolve(ctx, agent, email, senderIsAgent)
	if err != nil {
		return nil, err
	}

	if route.Flow != nil {
		f, err := s.engine.ResumeFlow(ctx, route.Flow.ID, route.Event, email)
		if err != nil {
			if errors.Is(err, ErrNotResumable) || errors.Is(err, secondary.ErrStaleFlow) {
				log.Warn("resume rejected", "flow_id", route.Flow.ID, "error", err)
				return &primary.InboundResult{
					Outcome: primary.OutcomeRejected,
					FlowID:  route.Flow.ID,
					Reason:  err.Error(),
				}, nil
			}
			// The flow itself may have failed mid-round; the message
			// was still consumed.
			return &primary.InboundResult{Outcome: primary.OutcomeResumed, FlowID: route.Flow.ID}, err
		}
		return &primary.InboundResult{Outcome: primary.OutcomeResumed, FlowID: f.ID}, nil
	}

	req := primary.StartFlowRequest{
		Agent:       agent,
		Trigger:     email,
		TriggerKind: flow.TriggerEmail,
	}
	if senderIsAgent {
		req.TriggerKind = flow.TriggerAgent
		req.ParentRequestID = delegate.ExtractRequestID(email.Subject)
		req.Depth = s.delegationDepth(ctx, dir, email, req.ParentRequestID)
	}

	f, err := s.engine.StartFlow(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.ExecuteRound(ctx, f.ID); err != nil {
		return &primary.InboundResult{Outcome: primary.OutcomeStarted, FlowID: f.ID}, err
	}
	return &primary.InboundResult{Outcome: primary.OutcomeStarted, FlowID: f.ID}, nil
}

// delegationDepth derives the new flow's chain depth from the
// delegating agent's suspended flow. An untraceable parent counts as a
// root request.
func (s *InboundService) delegationDepth(ctx context.Context, dir *models.Directory, email models.Email, parentRequestID string) int {
	if parentRequestID == "" {
		return 0
	}
	sender := dir.AgentByUsername(models.LocalPart(email.From))
	if sender == nil {
		return 0
	}

	waiting, err := s.router.flows.ListByAgent(ctx, sender.ID, flow.StateWaiting)
	if err != nil {
		s.logger.Warn("failed to trace delegation parent", "error", err)
		return 0
	}
	for _, f := range waiting {
		if f.Waiting != nil && f.Waiting.RequestID == parentRequestID {
			return f.Depth + 1
		}
	}
	return 0
}

// Ensure InboundService implements the interface.
var _ primary.InboundService = (*InboundService)(nil)
