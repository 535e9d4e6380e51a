package flow

import "time"

// TransitionInput carries everything a decision transition needs. The
// caller supplies the clock so transitions stay pure and testable.
type TransitionInput struct {
	Decision Decision
	Now      time.Time

	// TimeoutAfter is how long the flow may wait before the sweep
	// times it out. Applied on WAIT_* transitions.
	TimeoutAfter time.Duration

	// Delegation details for WAIT_FOR_AGENT transitions.
	RequestID      string
	TargetAgentID  string
	ConversationID string
}

// TransitionResult is the state change produced by one executed round.
type TransitionResult struct {
	Round     int
	State     State
	Waiting   *WaitingFor
	TimeoutAt *time.Time

	// Forced is set when the round cap overrode the model's decision.
	Forced bool

	// Loop is set for CONTINUE decisions: the engine should execute
	// another round immediately instead of unwinding.
	Loop bool
}

// ApplyDecision advances a flow that just executed round `round`
// (0-based) under the given cap. The invariant round <= maxRounds
// holds on every path: the executed round always increments the
// counter, and once the counter reaches maxRounds any non-COMPLETE
// decision is overridden so the flow terminates. The hard cap
// guarantees termination and bounds tool-execution cost regardless of
// what the model asks for.
func ApplyDecision(round, maxRounds int, in TransitionInput) TransitionResult {
	next := round + 1

	decision := in.Decision
	forced := false
	if next >= maxRounds && decision != DecisionComplete {
		decision = DecisionComplete
		forced = true
	}

	switch decision {
	case DecisionComplete:
		return TransitionResult{Round: next, State: StateCompleted, Forced: forced}

	case DecisionWaitForUser:
		deadline := in.Now.Add(in.TimeoutAfter)
		return TransitionResult{
			Round: next,
			State: StateWaiting,
			Waiting: &WaitingFor{
				Type:           WaitEmailResponse,
				ConversationID: in.ConversationID,
			},
			TimeoutAt: &deadline,
		}

	case DecisionWaitForAgent:
		deadline := in.Now.Add(in.TimeoutAfter)
		return TransitionResult{
			Round: next,
			State: StateWaiting,
			Waiting: &WaitingFor{
				Type:           WaitAgentResponse,
				RequestID:      in.RequestID,
				TargetAgentID:  in.TargetAgentID,
				ConversationID: in.ConversationID,
			},
			TimeoutAt: &deadline,
		}

	default: // CONTINUE and anything unrecognized keeps the flow active
		return TransitionResult{Round: next, State: StateActive, Loop: true}
	}
}

// Apply writes a transition result onto the flow.
func (f *Flow) Apply(result TransitionResult, record RoundRecord, now time.Time) {
	record.Index = f.Round
	if result.Forced {
		record.Decision = DecisionComplete
	}
	f.History = append(f.History, record)
	f.Round = result.Round
	f.State = result.State
	f.Waiting = result.Waiting
	f.TimeoutAt = result.TimeoutAt
	f.UpdatedAt = now
}
