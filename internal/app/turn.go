package app

import (
	"encoding/json"
	"strings"

	"github.com/example/courier/internal/core/flow"
)

// AgentTurn is the structured decision payload the model returns for
// one reasoning step.
type AgentTurn struct {
	Decision flow.Decision  `json:"decision"`
	Reply    string         `json:"reply,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`

	// TargetAgent and Subject describe an outbound delegation for
	// WAIT_FOR_AGENT decisions.
	TargetAgent string `json:"target_agent,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// ParseTurn extracts the structured turn from raw model output. Models
// wrap JSON in code fences or prose often enough that the parser scans
// for the outermost object instead of requiring clean output. Output
// with no parseable object degrades to a plain COMPLETE reply carrying
// the text as-is, so a chatty model ends the flow instead of wedging
// it.
func ParseTurn(raw string) AgentTurn {
	text := strings.TrimSpace(raw)

	if obj := extractObject(text); obj != "" {
		var turn AgentTurn
		if err := json.Unmarshal([]byte(obj), &turn); err == nil && turn.Decision != "" {
			turn.Decision = normalizeDecision(turn.Decision)
			return turn
		}
	}

	return AgentTurn{Decision: flow.DecisionComplete, Reply: text}
}

// extractObject returns the first balanced top-level JSON object in
// text, or "".
func extractObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func normalizeDecision(d flow.Decision) flow.Decision {
	switch flow.Decision(strings.ToUpper(strings.TrimSpace(string(d)))) {
	case flow.DecisionComplete:
		return flow.DecisionComplete
	case flow.DecisionWaitForUser:
		return flow.DecisionWaitForUser
	case flow.DecisionWaitForAgent:
		return flow.DecisionWaitForAgent
	case flow.DecisionContinue:
		return flow.DecisionContinue
	default:
		return flow.DecisionComplete
	}
}
