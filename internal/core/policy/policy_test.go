package policy

import (
	"reflect"
	"testing"

	"github.com/example/courier/internal/models"
)

func testDirectory() *models.Directory {
	return &models.Directory{
		Agents: []models.Agent{
			{ID: "agent-1", Username: "helpdesk", Address: "helpdesk@agents.example.com", TeamID: "team-1"},
			{ID: "agent-2", Username: "billing", Address: "billing@agents.example.com", TeamID: "team-1"},
		},
		Teams: []models.Team{
			{ID: "team-1", Name: "Support", Members: []string{"alice@example.com", "Bob@Example.com"}},
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	got := Normalize(models.Agent{})
	if got.InboundRule != RuleTeamAndAgents {
		t.Errorf("InboundRule = %q, want %q", got.InboundRule, RuleTeamAndAgents)
	}
	if got.OutboundRule != RuleTeamAndAgents {
		t.Errorf("OutboundRule = %q, want %q", got.OutboundRule, RuleTeamAndAgents)
	}
	if len(got.InboundAllow) != 0 || len(got.OutboundAllow) != 0 {
		t.Errorf("allow sets should be empty, got %v / %v", got.InboundAllow, got.OutboundAllow)
	}
}

func TestNormalizeAllowLists(t *testing.T) {
	agent := models.Agent{
		InboundRule:  " Team_Only ",
		InboundAllow: []string{" Alice@Example.COM ", "", "bob@example.com"},
	}
	got := Normalize(agent)

	if got.InboundRule != RuleTeamOnly {
		t.Errorf("InboundRule = %q, want %q", got.InboundRule, RuleTeamOnly)
	}
	want := map[string]struct{}{"alice@example.com": {}, "bob@example.com": {}}
	if !reflect.DeepEqual(got.InboundAllow, want) {
		t.Errorf("InboundAllow = %v, want %v", got.InboundAllow, want)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	agent := models.Agent{
		InboundRule:   "AGENTS_ONLY",
		OutboundRule:  "bogus",
		InboundAllow:  []string{"X@Y.com", " z@y.com "},
		OutboundAllow: []string{"Q@Y.com"},
	}
	first := Normalize(agent)

	// Feed the normalized output back through as raw configuration.
	roundTrip := models.Agent{
		InboundRule:   string(first.InboundRule),
		OutboundRule:  string(first.OutboundRule),
		InboundAllow:  setToSlice(first.InboundAllow),
		OutboundAllow: setToSlice(first.OutboundAllow),
	}
	second := Normalize(roundTrip)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize not idempotent: first=%+v second=%+v", first, second)
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	dir := testDirectory()
	teamAgent := models.Agent{ID: "agent-1", Username: "helpdesk", TeamID: "team-1"}

	tests := []struct {
		name       string
		agent      models.Agent
		direction  Direction
		peer       string
		wantAllow  bool
		wantReason string
	}{
		{
			name:      "rule any allows strangers inbound",
			agent:     models.Agent{InboundRule: "any"},
			direction: DirectionInbound,
			peer:      "stranger@elsewhere.com",
			wantAllow: true,
		},
		{
			name:      "rule any allows strangers outbound",
			agent:     models.Agent{OutboundRule: "any"},
			direction: DirectionOutbound,
			peer:      "stranger@elsewhere.com",
			wantAllow: true,
		},
		{
			name:      "explicit allow-list wins over restrictive rule",
			agent:     models.Agent{InboundRule: "agents_only", InboundAllow: []string{"vip@example.com"}},
			direction: DirectionInbound,
			peer:      "VIP@example.com",
			wantAllow: true,
		},
		{
			name:      "allow list is per-direction",
			agent:     models.Agent{OutboundRule: "agents_only", InboundAllow: []string{"vip@example.com"}},
			direction: DirectionOutbound,
			peer:      "vip@example.com",
			wantAllow: false, wantReason: ReasonAgentsOnly,
		},
		{
			name:      "known agent username passes agents_only",
			agent:     models.Agent{InboundRule: "agents_only"},
			direction: DirectionInbound,
			peer:      "billing@agents.example.com",
			wantAllow: true,
		},
		{
			name:       "agents_only denies non-agents",
			agent:      models.Agent{InboundRule: "agents_only"},
			direction:  DirectionInbound,
			peer:       "alice@example.com",
			wantAllow:  false,
			wantReason: ReasonAgentsOnly,
		},
		{
			name:      "team_only allows team member",
			agent:     models.Agent{TeamID: "team-1", InboundRule: "team_only"},
			direction: DirectionInbound,
			peer:      "bob@example.com",
			wantAllow: true,
		},
		{
			name:       "team_only denies non-member",
			agent:      models.Agent{TeamID: "team-1", InboundRule: "team_only"},
			direction:  DirectionInbound,
			peer:       "mallory@elsewhere.com",
			wantAllow:  false,
			wantReason: ReasonNotInTeam,
		},
		{
			name:      "team_and_agents allows team member",
			agent:     teamAgent,
			direction: DirectionInbound,
			peer:      "alice@example.com",
			wantAllow: true,
		},
		{
			name:      "team_and_agents allows agent peer",
			agent:     teamAgent,
			direction: DirectionOutbound,
			peer:      "billing@agents.example.com",
			wantAllow: true,
		},
		{
			name:       "team rule with no team denies",
			agent:      models.Agent{InboundRule: "team_only"},
			direction:  DirectionInbound,
			peer:       "alice@example.com",
			wantAllow:  false,
			wantReason: ReasonNoTeam,
		},
		{
			name:      "display name wrapper handled",
			agent:     models.Agent{TeamID: "team-1", InboundRule: "team_only"},
			direction: DirectionInbound,
			peer:      "Alice Smith <alice@example.com>",
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.direction, tt.agent, tt.peer, dir)
			if got.Allowed != tt.wantAllow {
				t.Errorf("Evaluate().Allowed = %v, want %v (reason %q)", got.Allowed, tt.wantAllow, got.Reason)
			}
			if !tt.wantAllow && got.Reason != tt.wantReason {
				t.Errorf("Evaluate().Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if tt.wantAllow && got.Reason != "" {
				t.Errorf("Evaluate().Reason = %q, want empty on allow", got.Reason)
			}
		})
	}
}
