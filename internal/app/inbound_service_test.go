package app

import (
	"context"
	"testing"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/ports/primary"
)

func newTestInbound(repo *mockFlowRepo, engine primary.FlowService) *InboundService {
	return NewInboundService(
		&mockDirectory{dir: testDirectory()},
		newMockProcessed(),
		NewRouter(repo),
		engine,
		testLogger(),
	)
}

func webhookPayload() map[string]any {
	return map[string]any{
		"message_id": "<m1@x.com>",
		"from":       "alice@example.com",
		"to":         "helpdesk@agents.example.com",
		"subject":    "Need help",
		"text":       "My printer is on fire.",
	}
}

func TestHandlePayloadStartsFlow(t *testing.T) {
	engine := &mockFlowService{}
	svc := newTestInbound(newMockFlowRepo(), engine)

	res, err := svc.HandlePayload(context.Background(), "helpdesk", webhookPayload())
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}

	if res.Outcome != primary.OutcomeStarted {
		t.Errorf("Outcome = %s, want started", res.Outcome)
	}
	if len(engine.started) != 1 {
		t.Fatalf("started %d flows, want 1", len(engine.started))
	}
	req := engine.started[0]
	if req.Agent.ID != "agent-1" {
		t.Errorf("started for agent %s", req.Agent.ID)
	}
	if req.TriggerKind != flow.TriggerEmail {
		t.Errorf("TriggerKind = %s, want email", req.TriggerKind)
	}
	if req.Trigger.ConversationID != "m1@x.com" {
		t.Errorf("Trigger.ConversationID = %q", req.Trigger.ConversationID)
	}
}

func TestHandlePayloadUnknownAgent(t *testing.T) {
	svc := newTestInbound(newMockFlowRepo(), &mockFlowService{})

	res, err := svc.HandlePayload(context.Background(), "nobody", webhookPayload())
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}
	if res.Outcome != primary.OutcomeRejected || res.Reason != "unknown_agent" {
		t.Errorf("result = %+v", res)
	}
}

func TestHandlePayloadDisabledAgent(t *testing.T) {
	engine := &mockFlowService{}
	dir := testDirectory()
	dir.Agents[0].Disabled = true
	svc := NewInboundService(
		&mockDirectory{dir: dir}, newMockProcessed(),
		NewRouter(newMockFlowRepo()), engine, testLogger(),
	)

	res, err := svc.HandlePayload(context.Background(), "helpdesk", webhookPayload())
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}
	if res.Outcome != primary.OutcomeRejected || res.Reason != "agent_disabled" {
		t.Errorf("result = %+v", res)
	}
	if len(engine.started) != 0 {
		t.Errorf("disabled agent started a flow")
	}
}

func TestHandlePayloadMalformed(t *testing.T) {
	svc := newTestInbound(newMockFlowRepo(), &mockFlowService{})

	res, err := svc.HandlePayload(context.Background(), "helpdesk", map[string]any{"from": "alice@example.com"})
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}
	if res.Outcome != primary.OutcomeMalformed {
		t.Errorf("Outcome = %s, want malformed", res.Outcome)
	}
}

func TestHandlePayloadDuplicate(t *testing.T) {
	engine := &mockFlowService{}
	svc := newTestInbound(newMockFlowRepo(), engine)

	if _, err := svc.HandlePayload(context.Background(), "helpdesk", webhookPayload()); err != nil {
		t.Fatalf("first HandlePayload() error = %v", err)
	}
	res, err := svc.HandlePayload(context.Background(), "helpdesk", webhookPayload())
	if err != nil {
		t.Fatalf("second HandlePayload() error = %v", err)
	}

	if res.Outcome != primary.OutcomeDuplicate {
		t.Errorf("Outcome = %s, want duplicate", res.Outcome)
	}
	if len(engine.started) != 1 {
		t.Errorf("redelivery started another flow")
	}
}

func TestHandlePayloadPolicyBlocked(t *testing.T) {
	engine := &mockFlowService{}
	dir := testDirectory()
	dir.Agents[0].InboundRule = "agents_only"
	svc := NewInboundService(
		&mockDirectory{dir: dir}, newMockProcessed(),
		NewRouter(newMockFlowRepo()), engine, testLogger(),
	)

	res, err := svc.HandlePayload(context.Background(), "helpdesk", webhookPayload())
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}
	if res.Outcome != primary.OutcomeBlocked {
		t.Errorf("Outcome = %s, want blocked", res.Outcome)
	}
	if res.Reason == "" {
		t.Error("blocked result carries no reason")
	}
	if len(engine.started) != 0 {
		t.Errorf("blocked sender started a flow")
	}
}

func TestHandlePayloadSelfAddressed(t *testing.T) {
	svc := newTestInbound(newMockFlowRepo(), &mockFlowService{})

	payload := webhookPayload()
	payload["from"] = "helpdesk@agents.example.com"

	res, err := svc.HandlePayload(context.Background(), "helpdesk", payload)
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}
	if res.Outcome != primary.OutcomeRejected || res.Reason != "self_addressed" {
		t.Errorf("result = %+v", res)
	}
}

func TestHandlePayloadResumesWaitingFlow(t *testing.T) {
	repo := newMockFlowRepo()
	seedWaitingFlow(t, repo, "flow-1", flow.WaitingFor{
		Type:           flow.WaitEmailResponse,
		ConversationID: "m1@x.com",
	})
	engine := &mockFlowService{}
	svc := newTestInbound(repo, engine)

	payload := map[string]any{
		"message_id":  "<m2@x.com>",
		"from":        "alice@example.com",
		"to":          "helpdesk@agents.example.com",
		"subject":     "Re: Need help",
		"text":        "It is a LaserJet 9000.",
		"in_reply_to": "<m1@x.com>",
	}

	res, err := svc.HandlePayload(context.Background(), "helpdesk", payload)
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}

	if res.Outcome != primary.OutcomeResumed {
		t.Errorf("Outcome = %s, want resumed", res.Outcome)
	}
	if len(engine.resumed) != 1 || engine.resumed[0] != "flow-1" {
		t.Errorf("resumed = %v", engine.resumed)
	}
	if len(engine.started) != 0 {
		t.Errorf("reply also started a flow")
	}
}

func TestHandlePayloadDelegationRequestStartsAgentFlow(t *testing.T) {
	// A token-tagged request from another agent lands on the target
	// with no matching wait: it starts a delegated flow whose depth is
	// the delegator's plus one.
	repo := newMockFlowRepo()
	parent := &flow.Flow{
		ID:        "parent-1",
		AgentID:   "agent-1",
		State:     flow.StateWaiting,
		Round:     1,
		MaxRounds: 10,
		Depth:     1,
		MaxDepth:  3,
		Waiting: &flow.WaitingFor{
			Type:           flow.WaitAgentResponse,
			RequestID:      "abc12345",
			TargetAgentID:  "agent-2",
			ConversationID: "d1@courier.local",
		},
		Trigger: testEmail(),
		Version: 1,
	}
	if err := repo.Create(context.Background(), parent); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	engine := &mockFlowService{}
	svc := newTestInbound(repo, engine)

	payload := map[string]any{
		"message_id": "<d1@courier.local>",
		"from":       "helpdesk@agents.example.com",
		"to":         "research@agents.example.com",
		"subject":    "[REQ-abc12345] Printer fire protocols",
		"text":       "Please find the protocol for printer fires.",
	}

	res, err := svc.HandlePayload(context.Background(), "research", payload)
	if err != nil {
		t.Fatalf("HandlePayload() error = %v", err)
	}

	if res.Outcome != primary.OutcomeStarted {
		t.Fatalf("Outcome = %s, want started", res.Outcome)
	}
	req := engine.started[0]
	if req.TriggerKind != flow.TriggerAgent {
		t.Errorf("TriggerKind = %s, want agent", req.TriggerKind)
	}
	if req.ParentRequestID != "abc12345" {
		t.Errorf("ParentRequestID = %q", req.ParentRequestID)
	}
	if req.Depth != 2 {
		t.Errorf("Depth = %d, want parent depth + 1", req.Depth)
	}
}
