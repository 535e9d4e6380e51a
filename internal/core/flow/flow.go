// Package flow contains the pure business logic for conversation
// flows: the state machine, its guards, and the round/timeout caps.
// This is part of the Functional Core - no I/O, only pure functions.
// All I/O (persistence, mail, tool execution) lives in the app layer.
package flow

import (
	"time"

	"github.com/example/courier/internal/models"
)

// State represents the lifecycle state of a conversation flow.
type State string

const (
	StateActive    State = "active"
	StateWaiting   State = "waiting"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends the flow. A terminated flow
// is never deleted - termination is a state, not removal.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateActive, StateWaiting, StateCompleted, StateTimedOut, StateFailed:
		return true
	}
	return false
}

// TriggerKind distinguishes how a flow came to exist.
type TriggerKind string

const (
	TriggerEmail TriggerKind = "email" // end-user email
	TriggerAgent TriggerKind = "agent" // delegation from another agent
)

// WaitKind is the discriminator of the waitingFor union.
type WaitKind string

const (
	WaitEmailResponse WaitKind = "email_response"
	WaitAgentResponse WaitKind = "agent_response"
)

// WaitingFor is the discriminated condition a waiting flow is
// suspended on. A non-nil WaitingFor exists exactly when the flow
// state is waiting.
type WaitingFor struct {
	Type WaitKind

	// RequestID and TargetAgentID are set for agent_response waits.
	RequestID     string
	TargetAgentID string

	// ConversationID is the thread the expected reply will arrive on:
	// the flow's own conversation for email waits, the delegation
	// message's conversation for agent waits. It doubles as the
	// fallback correlation key when a reply client strips the subject
	// token.
	ConversationID string
}

// Decision is the structured outcome of one agent reasoning step.
type Decision string

const (
	DecisionComplete     Decision = "COMPLETE"
	DecisionWaitForUser  Decision = "WAIT_FOR_USER"
	DecisionWaitForAgent Decision = "WAIT_FOR_AGENT"
	DecisionContinue     Decision = "CONTINUE"
)

// ToolCall records one tool invocation made during a round.
type ToolCall struct {
	Name    string
	Args    map[string]any
	Success bool
	Summary string
	Error   string
}

// RoundRecord is one entry of a flow's append-only history.
type RoundRecord struct {
	Index     int
	InputKind TriggerKind // what fed this round: user email or agent message
	From      string
	Input     string
	ToolCalls []ToolCall
	Decision  Decision
	Reply     string
	Timestamp time.Time
}

// Flow is one bounded multi-round conversation owned by a single
// agent. Mutated exclusively through the engine; persisted between
// rounds so the process may die at any point and resume from storage.
type Flow struct {
	ID      string
	AgentID string
	TeamID  string
	UserID  string

	State     State
	Round     int // 0-based count of executed rounds
	MaxRounds int

	// Depth bounds delegation chains (A asks B asks C...)
	// independently of MaxRounds. Root flows have depth 0.
	Depth    int
	MaxDepth int

	TimeoutAt *time.Time
	Waiting   *WaitingFor

	TriggerKind TriggerKind
	Trigger     models.Email
	// ParentRequestID carries the [REQ-...] token of the delegation
	// that spawned this flow, so the final reply can echo it back.
	ParentRequestID string

	History []RoundRecord

	Version   int // optimistic concurrency counter, bumped on every update
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationID returns the thread identifier of the flow's
// triggering message.
func (f *Flow) ConversationID() string {
	return f.Trigger.ConversationID
}

// Expired reports whether a waiting flow's timeout has passed.
func (f *Flow) Expired(now time.Time) bool {
	return f.State == StateWaiting && f.TimeoutAt != nil && now.After(*f.TimeoutAt)
}
