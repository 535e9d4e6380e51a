// Package policy contains the pure business logic for agent mail
// permissioning. This is part of the Functional Core - no I/O, only
// pure functions over a supplied directory snapshot.
package policy

import (
	"strings"

	"github.com/example/courier/internal/models"
)

// Rule is the configured permission class governing who may address an
// agent (inbound) or be addressed by it (outbound).
type Rule string

const (
	RuleAny           Rule = "any"
	RuleTeamAndAgents Rule = "team_and_agents"
	RuleTeamOnly      Rule = "team_only"
	RuleAgentsOnly    Rule = "agents_only"
)

// DefaultRule applies when an agent's configuration leaves a rule
// blank or carries an unknown value.
const DefaultRule = RuleTeamAndAgents

// Direction selects which side of a mail exchange is being evaluated.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MailPolicy is the normalized permission configuration for one agent.
// Derived from agent configuration on every evaluation, never stored
// per-message.
type MailPolicy struct {
	InboundRule   Rule
	OutboundRule  Rule
	InboundAllow  map[string]struct{}
	OutboundAllow map[string]struct{}
}

// EvalResult is the outcome of a policy evaluation. Reason is a
// machine-readable token populated on denial; it is logged, never
// surfaced to the remote party.
type EvalResult struct {
	Allowed bool
	Reason  string
}

// Denial reason tokens.
const (
	ReasonAgentsOnly  = "blocked_agents_only"
	ReasonNotInTeam   = "blocked_not_team_member"
	ReasonNoTeam      = "blocked_agent_has_no_team"
	ReasonUnknownRule = "blocked_unknown_rule"
)

// Normalize derives the effective MailPolicy from raw agent
// configuration: missing or unrecognized rules fall back to
// team_and_agents, allow-list entries are lowercased and trimmed into
// sets. Idempotent - normalizing an already-normalized policy's inputs
// yields the same result.
func Normalize(agent models.Agent) MailPolicy {
	return MailPolicy{
		InboundRule:   normalizeRule(agent.InboundRule),
		OutboundRule:  normalizeRule(agent.OutboundRule),
		InboundAllow:  normalizeAllow(agent.InboundAllow),
		OutboundAllow: normalizeAllow(agent.OutboundAllow),
	}
}

func normalizeRule(raw string) Rule {
	switch Rule(strings.ToLower(strings.TrimSpace(raw))) {
	case RuleAny:
		return RuleAny
	case RuleTeamAndAgents:
		return RuleTeamAndAgents
	case RuleTeamOnly:
		return RuleTeamOnly
	case RuleAgentsOnly:
		return RuleAgentsOnly
	default:
		return DefaultRule
	}
}

func normalizeAllow(raw []string) map[string]struct{} {
	set := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		set[entry] = struct{}{}
	}
	return set
}

// Evaluate decides whether the agent may exchange mail with peerAddr
// in the given direction. For inbound mail peerAddr is the sender; for
// outbound it is the recipient.
//
// Precedence: (1) explicit per-direction allow-list, (2) peer local
// part matches a known agent username, (3) the configured rule. The
// rule step never re-grants what step 2 already covers: by the time
// agents_only is consulted, a non-agent peer has already failed the
// agent match and is denied.
func Evaluate(direction Direction, agent models.Agent, peerAddr string, dir *models.Directory) EvalResult {
	pol := Normalize(agent)

	rule := pol.InboundRule
	allow := pol.InboundAllow
	if direction == DirectionOutbound {
		rule = pol.OutboundRule
		allow = pol.OutboundAllow
	}

	bare := models.BareAddress(peerAddr)
	if _, ok := allow[bare]; ok {
		return EvalResult{Allowed: true}
	}

	peerIsAgent := dir != nil && dir.AgentByUsername(models.LocalPart(peerAddr)) != nil
	if peerIsAgent {
		return EvalResult{Allowed: true}
	}

	switch rule {
	case RuleAny:
		return EvalResult{Allowed: true}
	case RuleTeamAndAgents, RuleTeamOnly:
		if agent.TeamID == "" {
			return EvalResult{Allowed: false, Reason: ReasonNoTeam}
		}
		if dir != nil && dir.IsTeamMember(agent.TeamID, bare) {
			return EvalResult{Allowed: true}
		}
		return EvalResult{Allowed: false, Reason: ReasonNotInTeam}
	case RuleAgentsOnly:
		return EvalResult{Allowed: false, Reason: ReasonAgentsOnly}
	default:
		return EvalResult{Allowed: false, Reason: ReasonUnknownRule}
	}
}
