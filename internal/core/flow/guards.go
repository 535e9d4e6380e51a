package flow

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // populated when not allowed
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanExecute evaluates whether a round may run on the flow.
// Rule: only active flows execute rounds; terminal and waiting flows
// do not.
func CanExecute(f *Flow) GuardResult {
	if f.State != StateActive {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("flow %s is %s, not active", f.ID, f.State),
		}
	}
	return GuardResult{Allowed: true}
}

// ResumeEvent describes the incoming event attempting to wake a
// waiting flow.
type ResumeEvent struct {
	Kind           WaitKind
	ConversationID string
	RequestID      string
	SourceAgentID  string
}

// CanResume evaluates whether the event may wake the flow.
// Rules: the flow must still be waiting (a timed-out or otherwise
// moved-on flow is never silently reactivated), the event kind must
// match the suspended condition, and the correlation key must line up.
// For agent responses the request-id token is authoritative; when the
// reply client stripped it, the delegation thread's conversation id
// serves as the fallback key.
func CanResume(f *Flow, ev ResumeEvent) GuardResult {
	if f.State != StateWaiting {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("flow %s is %s, not waiting", f.ID, f.State),
		}
	}
	if f.Waiting == nil {
		// waiting without waitingFor violates the state invariant;
		// refuse rather than guess.
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("flow %s is waiting but has no waitingFor condition", f.ID),
		}
	}
	if f.Waiting.Type != ev.Kind {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("flow %s waits for %s, got %s", f.ID, f.Waiting.Type, ev.Kind),
		}
	}

	switch f.Waiting.Type {
	case WaitEmailResponse:
		if ev.ConversationID == "" || ev.ConversationID != f.Waiting.ConversationID {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("conversation %s does not match waiting flow %s", ev.ConversationID, f.ID),
			}
		}
	case WaitAgentResponse:
		if !matchesAgentWait(f.Waiting, ev) {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("request id %q does not match waiting flow %s", ev.RequestID, f.ID),
			}
		}
	}

	return GuardResult{Allowed: true}
}

func matchesAgentWait(w *WaitingFor, ev ResumeEvent) bool {
	if ev.RequestID != "" {
		return ev.RequestID == w.RequestID
	}
	// Token stripped in transit: fall back to the delegation thread.
	return ev.ConversationID != "" && ev.ConversationID == w.ConversationID
}

// CanDelegate evaluates whether the flow may spawn another delegation.
// Rule: delegation chains are bounded independently of the round cap,
// so A->B->A ping-pong cannot run forever even while each flow stays
// under its own maxRounds.
func CanDelegate(f *Flow) GuardResult {
	if f.MaxDepth > 0 && f.Depth >= f.MaxDepth {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("flow %s at delegation depth %d, max %d", f.ID, f.Depth, f.MaxDepth),
		}
	}
	return GuardResult{Allowed: true}
}
