package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/courier/internal/core/delegate"
	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/core/policy"
	"github.com/example/courier/internal/core/thread"
	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/primary"
	"github.com/example/courier/internal/ports/secondary"
)

// Defaults applied when an agent's configuration leaves caps blank.
const (
	DefaultMaxRounds      = 10
	DefaultTimeoutMinutes = 24 * 60
	DefaultMaxDepth       = 3
)

// FlowEngine implements primary.FlowService: it executes reasoning
// rounds, performs the mail and tool side effects each decision calls
// for, and persists every transition before unwinding. All same-flow
// writes go through compare-and-swap, so concurrent deliveries settle
// by retrying against storage instead of corrupting history.
type FlowEngine struct {
	flows     secondary.FlowRepository
	directory secondary.DirectoryProvider
	mailer    secondary.MailSender
	tools     secondary.ToolGateway
	completer secondary.Completer
	logger    *slog.Logger
	now       func() time.Time
}

// NewFlowEngine creates a new flow engine.
func NewFlowEngine(
	flows secondary.FlowRepository,
	directory secondary.DirectoryProvider,
	mailer secondary.MailSender,
	tools secondary.ToolGateway,
	completer secondary.Completer,
	logger *slog.Logger,
) *FlowEngine {
	return &FlowEngine{
		flows:     flows,
		directory: directory,
		mailer:    mailer,
		tools:     tools,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
}

// StartFlow persists a new flow in active state at round 0.
func (e *FlowEngine) StartFlow(ctx context.Context, req primary.StartFlowRequest) (*flow.Flow, error) {
	now := e.now()
	agent := req.Agent

	maxRounds := agent.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	maxDepth := agent.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	f := &flow.Flow{
		ID:              uuid.New().String(),
		AgentID:         agent.ID,
		TeamID:          agent.TeamID,
		UserID:          agent.UserID,
		State:           flow.StateActive,
		Round:           0,
		MaxRounds:       maxRounds,
		Depth:           req.Depth,
		MaxDepth:        maxDepth,
		TriggerKind:     req.TriggerKind,
		Trigger:         req.Trigger,
		ParentRequestID: req.ParentRequestID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.flows.Create(ctx, f); err != nil {
		return nil, err
	}

	e.logger.Info("flow started",
		"flow_id", f.ID, "agent_id", f.AgentID,
		"trigger", string(f.TriggerKind), "depth", f.Depth)
	return f, nil
}

// ExecuteRound runs reasoning rounds on an active flow until it
// completes, suspends, or fails.
func (e *FlowEngine) ExecuteRound(ctx context.Context, flowID string) (*flow.Flow, error) {
	f, err := e.flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, f, roundInput{})
}

// ResumeFlow wakes a waiting flow with a matching event and executes
// the next round on the incoming message.
func (e *FlowEngine) ResumeFlow(ctx context.Context, flowID string, event flow.ResumeEvent, email models.Email) (*flow.Flow, error) {
	f, err := e.flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if guard := flow.CanResume(f, event); !guard.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotResumable, guard.Reason)
	}

	// Claim the flow through CAS before executing anything. The loser
	// of a duplicate-delivery race fails here instead of running the
	// round twice.
	f.State = flow.StateActive
	f.Waiting = nil
	f.TimeoutAt = nil
	f.UpdatedAt = e.now()
	if err := e.flows.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to claim flow for resume: %w", err)
	}

	kind := flow.TriggerEmail
	if event.Kind == flow.WaitAgentResponse {
		kind = flow.TriggerAgent
	}

	e.logger.Info("flow resumed",
		"flow_id", f.ID, "agent_id", f.AgentID, "kind", string(kind))

	return e.run(ctx, f, roundInput{Kind: kind, From: email.From, Body: email.Body})
}

// GetFlow retrieves a flow with history.
func (e *FlowEngine) GetFlow(ctx context.Context, flowID string) (*flow.Flow, error) {
	return e.flows.GetByID(ctx, flowID)
}

// ListFlows lists an agent's flows, optionally filtered by state.
func (e *FlowEngine) ListFlows(ctx context.Context, agentID string, states ...flow.State) ([]*flow.Flow, error) {
	return e.flows.ListByAgent(ctx, agentID, states...)
}

// SweepTimeouts marks expired waiting flows timed_out and sends the
// final notice. Flows resumed concurrently lose the CAS and are left
// alone.
func (e *FlowEngine) SweepTimeouts(ctx context.Context) (int, error) {
	now := e.now()
	expired, err := e.flows.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	dir, err := e.directory.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, f := range expired {
		f.State = flow.StateTimedOut
		f.Waiting = nil
		f.TimeoutAt = nil
		f.UpdatedAt = now

		if err := e.flows.Update(ctx, f); err != nil {
			if errors.Is(err, secondary.ErrStaleFlow) {
				continue
			}
			return swept, err
		}
		swept++

		e.logger.Info("flow timed out", "flow_id", f.ID, "agent_id", f.AgentID)

		agent := dir.AgentByID(f.AgentID)
		if agent == nil {
			continue
		}
		e.sendChecked(ctx, *agent, dir, models.OutboundMessage{
			From:      agent.Address,
			To:        f.Trigger.From,
			Subject:   replySubject(f),
			Body:      "This conversation timed out while waiting for a response and has been closed.",
			InReplyTo: f.Trigger.MessageID,
		})
	}
	return swept, nil
}

// roundInput is the message feeding the next round. Zero value means
// the trigger (round 0) or a tool-result continuation.
type roundInput struct {
	Kind flow.TriggerKind
	From string
	Body string
}

// run executes rounds until the flow leaves the active state.
func (e *FlowEngine) run(ctx context.Context, f *flow.Flow, input roundInput) (*flow.Flow, error) {
	dir, err := e.directory.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	agent := dir.AgentByID(f.AgentID)
	if agent == nil {
		return f, e.fail(ctx, f, fmt.Errorf("%w: flow agent %s", ErrAgentUnknown, f.AgentID))
	}

	for {
		if guard := flow.CanExecute(f); !guard.Allowed {
			return f, guard.Error()
		}

		result, err := e.executeOne(ctx, f, *agent, dir, input)
		if err != nil {
			return f, err
		}
		if !result.Loop {
			return f, nil
		}
		// Tool output already sits in history; the next round reads it
		// from there.
		input = roundInput{}
	}
}

// executeOne runs exactly one reasoning round and persists the
// transition.
func (e *FlowEngine) executeOne(ctx context.Context, f *flow.Flow, agent models.Agent, dir *models.Directory, input roundInput) (flow.TransitionResult, error) {
	now := e.now()

	raw, err := e.completer.Complete(ctx, secondary.CompletionRequest{
		Model:    agent.Model,
		System:   systemPrompt(agent, f),
		Messages: conversationMessages(f, input.From, input.Body),
	})
	if err != nil {
		return flow.TransitionResult{}, e.fail(ctx, f, fmt.Errorf("completion failed: %w", err))
	}

	turn := ParseTurn(raw)
	record := flow.RoundRecord{
		InputKind: input.Kind,
		From:      input.From,
		Input:     input.Body,
		Decision:  turn.Decision,
		Reply:     turn.Reply,
		Timestamp: now,
	}

	// The round about to execute is the last one the cap allows: any
	// non-COMPLETE intent is about to be overridden, so skip the side
	// effects it would have paid for.
	atCap := f.Round+1 >= f.MaxRounds && turn.Decision != flow.DecisionComplete

	in := flow.TransitionInput{
		Decision:     turn.Decision,
		Now:          now,
		TimeoutAfter: e.waitTimeout(agent),
	}

	if !atCap {
		switch turn.Decision {
		case flow.DecisionContinue:
			if turn.Tool != "" {
				call, err := e.executeTool(ctx, agent, turn)
				if err != nil {
					return flow.TransitionResult{}, e.fail(ctx, f, err)
				}
				record.ToolCalls = append(record.ToolCalls, call)
			}

		case flow.DecisionWaitForUser:
			in.ConversationID = f.ConversationID()
			e.sendChecked(ctx, agent, dir, models.OutboundMessage{
				From:      agent.Address,
				To:        f.Trigger.From,
				Subject:   replySubject(f),
				Body:      turn.Reply,
				InReplyTo: f.Trigger.MessageID,
			})

		case flow.DecisionWaitForAgent:
			deleg, ok := e.delegate(ctx, f, agent, dir, turn)
			if !ok {
				// Delegation refused: close with what the agent has
				// instead of waiting for a reply that cannot come.
				in.Decision = flow.DecisionComplete
				record.Decision = flow.DecisionComplete
				e.sendFinal(ctx, f, agent, dir, turn.Reply)
			} else {
				in.RequestID = deleg.requestID
				in.TargetAgentID = deleg.targetAgentID
				in.ConversationID = deleg.conversationID
			}

		case flow.DecisionComplete:
			e.sendFinal(ctx, f, agent, dir, turn.Reply)
		}
	} else if turn.Reply != "" {
		// Forced closure still delivers the text the model produced.
		e.sendFinal(ctx, f, agent, dir, turn.Reply)
	}

	result := flow.ApplyDecision(f.Round, f.MaxRounds, in)
	f.Apply(result, record, now)

	if err := e.flows.Update(ctx, f); err != nil {
		return flow.TransitionResult{}, fmt.Errorf("failed to persist round: %w", err)
	}

	e.logger.Info("round executed",
		"flow_id", f.ID, "agent_id", f.AgentID, "round", f.Round,
		"decision", string(record.Decision), "state", string(f.State), "forced", result.Forced)

	return result, nil
}

// executeTool runs one gateway call. A tool that runs and reports
// failure is recorded and fed back into the conversation; a gateway
// that cannot be reached fails the flow.
func (e *FlowEngine) executeTool(ctx context.Context, agent models.Agent, turn AgentTurn) (flow.ToolCall, error) {
	call := flow.ToolCall{Name: turn.Tool, Args: turn.ToolArgs}

	if !toolAllowed(agent, turn.Tool) {
		call.Success = false
		call.Error = fmt.Sprintf("tool %s is not available to this agent", turn.Tool)
		return call, nil
	}

	res, err := e.tools.Execute(ctx, turn.Tool, turn.ToolArgs, secondary.ToolContext{
		TeamID:  agent.TeamID,
		UserID:  agent.UserID,
		AgentID: agent.ID,
	})
	if err != nil {
		return call, fmt.Errorf("%w: %s: %v", ErrToolExecution, turn.Tool, err)
	}

	call.Success = res.Success
	call.Summary = res.Summary
	call.Error = res.Error
	return call, nil
}

type delegation struct {
	requestID      string
	targetAgentID  string
	conversationID string
}

// delegate sends a [REQ-...] tagged request to another agent and
// returns the correlation keys for the wait. Returns ok=false when the
// delegation is not permitted or cannot be delivered.
func (e *FlowEngine) delegate(ctx context.Context, f *flow.Flow, agent models.Agent, dir *models.Directory, turn AgentTurn) (delegation, bool) {
	if guard := flow.CanDelegate(f); !guard.Allowed {
		e.logger.Warn("delegation refused", "flow_id", f.ID, "reason", guard.Reason)
		return delegation{}, false
	}

	target := dir.AgentByUsername(turn.TargetAgent)
	if target == nil || target.Disabled {
		e.logger.Warn("delegation target unavailable",
			"flow_id", f.ID, "target", turn.TargetAgent)
		return delegation{}, false
	}

	if res := policy.Evaluate(policy.DirectionOutbound, agent, target.Address, dir); !res.Allowed {
		e.logger.Warn("delegation blocked by policy",
			"flow_id", f.ID, "target", target.Username, "reason", res.Reason)
		return delegation{}, false
	}

	requestID := delegate.NewRequestID()
	subject := turn.Subject
	if subject == "" {
		subject = delegate.StripReplyPrefixes(f.Trigger.Subject)
	}
	subject = delegate.EmbedToken(subject, requestID)

	messageID, err := e.mailer.Send(ctx, models.OutboundMessage{
		From:    agent.Address,
		To:      target.Address,
		Subject: subject,
		Body:    turn.Reply,
	})
	if err != nil {
		e.logger.Error("delegation send failed",
			"flow_id", f.ID, "target", target.Username, "error", err)
		return delegation{}, false
	}

	e.logger.Info("delegated",
		"flow_id", f.ID, "target", target.Username, "request_id", requestID)

	return delegation{
		requestID:      requestID,
		targetAgentID:  target.ID,
		conversationID: thread.Normalize(messageID),
	}, true
}

// sendFinal delivers the closing reply of a flow to whoever triggered
// it. Delegated flows echo the parent's request token so the waiting
// delegator can correlate the answer.
func (e *FlowEngine) sendFinal(ctx context.Context, f *flow.Flow, agent models.Agent, dir *models.Directory, reply string) {
	if reply == "" {
		return
	}
	subject := replySubject(f)
	if f.ParentRequestID != "" {
		subject = delegate.EmbedToken(subject, f.ParentRequestID)
	}
	e.sendChecked(ctx, agent, dir, models.OutboundMessage{
		From:      agent.Address,
		To:        f.Trigger.From,
		Subject:   subject,
		Body:      reply,
		InReplyTo: f.Trigger.MessageID,
	})
}

// sendChecked applies the outbound mail policy and delivers. Blocked
// or failed sends are logged and dropped; a reply the policy forbids
// never fails the flow.
func (e *FlowEngine) sendChecked(ctx context.Context, agent models.Agent, dir *models.Directory, msg models.OutboundMessage) {
	if res := policy.Evaluate(policy.DirectionOutbound, agent, msg.To, dir); !res.Allowed {
		e.logger.Warn("outbound blocked",
			"agent_id", agent.ID, "to", models.BareAddress(msg.To), "reason", res.Reason)
		return
	}
	if _, err := e.mailer.Send(ctx, msg); err != nil {
		e.logger.Error("send failed",
			"agent_id", agent.ID, "to", models.BareAddress(msg.To), "error", err)
	}
}

// fail moves the flow to failed and persists. There is no automatic
// retry; the failure is visible to the operator through the CLI.
func (e *FlowEngine) fail(ctx context.Context, f *flow.Flow, cause error) error {
	f.State = flow.StateFailed
	f.Waiting = nil
	f.TimeoutAt = nil
	f.UpdatedAt = e.now()

	if err := e.flows.Update(ctx, f); err != nil {
		e.logger.Error("failed to persist flow failure", "flow_id", f.ID, "error", err)
	}

	e.logger.Error("flow failed", "flow_id", f.ID, "agent_id", f.AgentID, "error", cause)
	return cause
}

func (e *FlowEngine) waitTimeout(agent models.Agent) time.Duration {
	minutes := agent.TimeoutMinutes
	if minutes <= 0 {
		minutes = DefaultTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// replySubject builds the Re: subject for replies on the trigger
// thread.
func replySubject(f *flow.Flow) string {
	base := delegate.StripReplyPrefixes(f.Trigger.Subject)
	if base == "" {
		return "Re: your message"
	}
	return "Re: " + base
}

func toolAllowed(agent models.Agent, name string) bool {
	for _, t := range agent.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Ensure FlowEngine implements the interface.
var _ primary.FlowService = (*FlowEngine)(nil)
