package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/primary"
	"github.com/example/courier/internal/ports/secondary"
)

var testClock = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockFlowRepo is an in-memory FlowRepository with the same
// compare-and-swap semantics as the SQLite implementation.
type mockFlowRepo struct {
	flows map[string]*flow.Flow
}

func newMockFlowRepo() *mockFlowRepo {
	return &mockFlowRepo{flows: make(map[string]*flow.Flow)}
}

func (m *mockFlowRepo) Create(_ context.Context, f *flow.Flow) error {
	cp := *f
	cp.History = append([]flow.RoundRecord(nil), f.History...)
	m.flows[f.ID] = &cp
	return nil
}

func (m *mockFlowRepo) GetByID(_ context.Context, id string) (*flow.Flow, error) {
	stored, ok := m.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", id, secondary.ErrFlowNotFound)
	}
	cp := *stored
	cp.History = append([]flow.RoundRecord(nil), stored.History...)
	return &cp, nil
}

func (m *mockFlowRepo) ListByAgent(_ context.Context, agentID string, states ...flow.State) ([]*flow.Flow, error) {
	var out []*flow.Flow
	for _, f := range m.flows {
		if f.AgentID != agentID {
			continue
		}
		if len(states) > 0 {
			match := false
			for _, s := range states {
				if f.State == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		cp := *f
		cp.History = append([]flow.RoundRecord(nil), f.History...)
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockFlowRepo) Update(_ context.Context, f *flow.Flow) error {
	stored, ok := m.flows[f.ID]
	if !ok {
		return fmt.Errorf("flow %s: %w", f.ID, secondary.ErrFlowNotFound)
	}
	if stored.Version != f.Version {
		return secondary.ErrStaleFlow
	}
	cp := *f
	cp.Version = f.Version + 1
	cp.History = append([]flow.RoundRecord(nil), f.History...)
	m.flows[f.ID] = &cp
	f.Version++
	return nil
}

func (m *mockFlowRepo) ListExpired(_ context.Context, now time.Time) ([]*flow.Flow, error) {
	var out []*flow.Flow
	for _, f := range m.flows {
		if f.Expired(now) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ secondary.FlowRepository = (*mockFlowRepo)(nil)

// mockDirectory serves a fixed snapshot.
type mockDirectory struct {
	dir models.Directory
}

func (m *mockDirectory) Snapshot(_ context.Context) (*models.Directory, error) {
	cp := m.dir
	return &cp, nil
}

func (m *mockDirectory) SaveAgent(_ context.Context, agent models.Agent) error {
	m.dir.Agents = append(m.dir.Agents, agent)
	return nil
}

func (m *mockDirectory) SaveTeam(_ context.Context, team models.Team) error {
	m.dir.Teams = append(m.dir.Teams, team)
	return nil
}

var _ secondary.DirectoryProvider = (*mockDirectory)(nil)

// mockMailer records sends and mints sequential message ids.
type mockMailer struct {
	sent []models.OutboundMessage
	fail error
}

func (m *mockMailer) Send(_ context.Context, msg models.OutboundMessage) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("out-%d@courier.local", len(m.sent)), nil
}

var _ secondary.MailSender = (*mockMailer)(nil)

// mockTools returns a scripted result for every call.
type mockTools struct {
	calls  []string
	result *secondary.ToolResult
	fail   error
}

func (m *mockTools) Execute(_ context.Context, toolName string, _ map[string]any, _ secondary.ToolContext) (*secondary.ToolResult, error) {
	m.calls = append(m.calls, toolName)
	if m.fail != nil {
		return nil, m.fail
	}
	if m.result != nil {
		return m.result, nil
	}
	return &secondary.ToolResult{Success: true, Summary: "ok"}, nil
}

var _ secondary.ToolGateway = (*mockTools)(nil)

// mockCompleter plays back scripted responses in order.
type mockCompleter struct {
	responses []string
	calls     int
	fail      error
}

func (m *mockCompleter) Complete(_ context.Context, _ secondary.CompletionRequest) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	if m.calls >= len(m.responses) {
		return "", errors.New("mock completer exhausted")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

var _ secondary.Completer = (*mockCompleter)(nil)

// mockFlowService records engine calls for inbound pipeline tests.
type mockFlowService struct {
	started  []primary.StartFlowRequest
	resumed  []string
	startErr error
}

func (m *mockFlowService) StartFlow(_ context.Context, req primary.StartFlowRequest) (*flow.Flow, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, req)
	return &flow.Flow{ID: fmt.Sprintf("flow-%d", len(m.started)), AgentID: req.Agent.ID, State: flow.StateActive}, nil
}

func (m *mockFlowService) ExecuteRound(_ context.Context, flowID string) (*flow.Flow, error) {
	return &flow.Flow{ID: flowID, State: flow.StateCompleted}, nil
}

func (m *mockFlowService) ResumeFlow(_ context.Context, flowID string, _ flow.ResumeEvent, _ models.Email) (*flow.Flow, error) {
	m.resumed = append(m.resumed, flowID)
	return &flow.Flow{ID: flowID, State: flow.StateCompleted}, nil
}

func (m *mockFlowService) GetFlow(_ context.Context, flowID string) (*flow.Flow, error) {
	return nil, secondary.ErrFlowNotFound
}

func (m *mockFlowService) ListFlows(_ context.Context, _ string, _ ...flow.State) ([]*flow.Flow, error) {
	return nil, nil
}

func (m *mockFlowService) SweepTimeouts(_ context.Context) (int, error) {
	return 0, nil
}

var _ primary.FlowService = (*mockFlowService)(nil)

// mockProcessed is an in-memory dedup store.
type mockProcessed struct {
	seen map[string]bool
}

func newMockProcessed() *mockProcessed {
	return &mockProcessed{seen: make(map[string]bool)}
}

func (m *mockProcessed) MarkProcessed(_ context.Context, agentID, messageID string) (bool, error) {
	key := agentID + "|" + messageID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

var _ secondary.ProcessedMessageStore = (*mockProcessed)(nil)

// testDirectory builds the standard fixture: a helpdesk agent and a
// research agent on one team with one human member.
func testDirectory() models.Directory {
	return models.Directory{
		Agents: []models.Agent{
			{
				ID:             "agent-1",
				Username:       "helpdesk",
				Address:        "helpdesk@agents.example.com",
				TeamID:         "team-1",
				UserID:         "user-1",
				Model:          "gpt-4o",
				Tools:          []string{"kanban"},
				MaxRounds:      10,
				TimeoutMinutes: 60,
				MaxDepth:       3,
			},
			{
				ID:       "agent-2",
				Username: "research",
				Address:  "research@agents.example.com",
				TeamID:   "team-1",
				MaxDepth: 3,
			},
		},
		Teams: []models.Team{
			{ID: "team-1", Name: "Support", Members: []string{"alice@example.com"}},
		},
	}
}

func testEmail() models.Email {
	return models.Email{
		MessageID:      "m1@x.com",
		From:           "alice@example.com",
		To:             "helpdesk@agents.example.com",
		Subject:        "Need help",
		Body:           "My printer is on fire.",
		ReceivedAt:     testClock,
		ConversationID: "m1@x.com",
	}
}

// newTestEngine wires a FlowEngine over the mocks and pins the clock.
func newTestEngine(repo *mockFlowRepo, mailer *mockMailer, tools *mockTools, completer *mockCompleter) *FlowEngine {
	e := NewFlowEngine(repo, &mockDirectory{dir: testDirectory()}, mailer, tools, completer, testLogger())
	e.now = func() time.Time { return testClock }
	return e
}
