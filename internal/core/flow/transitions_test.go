package flow

import (
	"testing"
	"time"
)

func TestApplyDecision(t *testing.T) {
	fixedTime := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute

	tests := []struct {
		name       string
		round      int
		maxRounds  int
		decision   Decision
		wantRound  int
		wantState  State
		wantWait   WaitKind // zero value means no wait expected
		wantForced bool
		wantLoop   bool
	}{
		{
			name:      "complete terminates",
			round:     0,
			maxRounds: 10,
			decision:  DecisionComplete,
			wantRound: 1,
			wantState: StateCompleted,
		},
		{
			name:      "wait for user suspends",
			round:     0,
			maxRounds: 10,
			decision:  DecisionWaitForUser,
			wantRound: 1,
			wantState: StateWaiting,
			wantWait:  WaitEmailResponse,
		},
		{
			name:      "wait for agent suspends",
			round:     2,
			maxRounds: 10,
			decision:  DecisionWaitForAgent,
			wantRound: 3,
			wantState: StateWaiting,
			wantWait:  WaitAgentResponse,
		},
		{
			name:      "continue loops",
			round:     1,
			maxRounds: 10,
			decision:  DecisionContinue,
			wantRound: 2,
			wantState: StateActive,
			wantLoop:  true,
		},
		{
			name:       "round cap overrides continue",
			round:      9,
			maxRounds:  10,
			decision:   DecisionContinue,
			wantRound:  10,
			wantState:  StateCompleted,
			wantForced: true,
		},
		{
			name:       "round cap overrides wait for agent",
			round:      9,
			maxRounds:  10,
			decision:   DecisionWaitForAgent,
			wantRound:  10,
			wantState:  StateCompleted,
			wantForced: true,
		},
		{
			name:       "round cap overrides wait for user",
			round:      4,
			maxRounds:  5,
			decision:   DecisionWaitForUser,
			wantRound:  5,
			wantState:  StateCompleted,
			wantForced: true,
		},
		{
			name:      "complete at cap is not forced",
			round:     9,
			maxRounds: 10,
			decision:  DecisionComplete,
			wantRound: 10,
			wantState: StateCompleted,
		},
		{
			name:      "unknown decision treated as continue",
			round:     0,
			maxRounds: 10,
			decision:  Decision("SOMETHING_ELSE"),
			wantRound: 1,
			wantState: StateActive,
			wantLoop:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ApplyDecision(tt.round, tt.maxRounds, TransitionInput{
				Decision:       tt.decision,
				Now:            fixedTime,
				TimeoutAfter:   timeout,
				RequestID:      "req-1",
				TargetAgentID:  "agent-2",
				ConversationID: "conv-1",
			})

			if result.Round != tt.wantRound {
				t.Errorf("Round = %d, want %d", result.Round, tt.wantRound)
			}
			if result.State != tt.wantState {
				t.Errorf("State = %q, want %q", result.State, tt.wantState)
			}
			if result.Forced != tt.wantForced {
				t.Errorf("Forced = %v, want %v", result.Forced, tt.wantForced)
			}
			if result.Loop != tt.wantLoop {
				t.Errorf("Loop = %v, want %v", result.Loop, tt.wantLoop)
			}

			if tt.wantState == StateWaiting {
				if result.Waiting == nil {
					t.Fatal("Waiting = nil, want non-nil for waiting state")
				}
				if result.Waiting.Type != tt.wantWait {
					t.Errorf("Waiting.Type = %q, want %q", result.Waiting.Type, tt.wantWait)
				}
				if result.TimeoutAt == nil {
					t.Fatal("TimeoutAt = nil, want non-nil for waiting state")
				}
				if want := fixedTime.Add(timeout); !result.TimeoutAt.Equal(want) {
					t.Errorf("TimeoutAt = %v, want %v", result.TimeoutAt, want)
				}
			} else {
				if result.Waiting != nil {
					t.Errorf("Waiting = %+v, want nil outside waiting state", result.Waiting)
				}
				if result.TimeoutAt != nil {
					t.Errorf("TimeoutAt = %v, want nil outside waiting state", result.TimeoutAt)
				}
			}
		})
	}
}

func TestApplyDecisionRoundNeverExceedsMax(t *testing.T) {
	for round := 0; round < 10; round++ {
		for _, d := range []Decision{DecisionComplete, DecisionWaitForUser, DecisionWaitForAgent, DecisionContinue} {
			result := ApplyDecision(round, 10, TransitionInput{Decision: d, Now: time.Now(), TimeoutAfter: time.Minute})
			if result.Round > 10 {
				t.Fatalf("round %d decision %s produced Round=%d > maxRounds", round, d, result.Round)
			}
			if result.Round == 10 && result.State != StateCompleted {
				t.Fatalf("round reached cap with state %q, want completed", result.State)
			}
		}
	}
}

func TestApplyRecordsHistory(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := &Flow{ID: "flow-1", State: StateActive, Round: 0, MaxRounds: 5}

	result := ApplyDecision(f.Round, f.MaxRounds, TransitionInput{
		Decision: DecisionWaitForUser, Now: now, TimeoutAfter: time.Hour, ConversationID: "conv-1",
	})
	f.Apply(result, RoundRecord{Decision: DecisionWaitForUser, Input: "hello"}, now)

	if f.Round != 1 {
		t.Errorf("Round = %d, want 1", f.Round)
	}
	if f.State != StateWaiting {
		t.Errorf("State = %q, want waiting", f.State)
	}
	if len(f.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(f.History))
	}
	if f.History[0].Index != 0 {
		t.Errorf("History[0].Index = %d, want 0", f.History[0].Index)
	}
	if !f.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", f.UpdatedAt, now)
	}
}

func TestApplyForcedRewritesRecordDecision(t *testing.T) {
	now := time.Now()
	f := &Flow{ID: "flow-1", State: StateActive, Round: 4, MaxRounds: 5}

	result := ApplyDecision(f.Round, f.MaxRounds, TransitionInput{Decision: DecisionWaitForAgent, Now: now, TimeoutAfter: time.Hour})
	f.Apply(result, RoundRecord{Decision: DecisionWaitForAgent}, now)

	if f.State != StateCompleted {
		t.Errorf("State = %q, want completed", f.State)
	}
	if got := f.History[len(f.History)-1].Decision; got != DecisionComplete {
		t.Errorf("recorded decision = %q, want %q after forced completion", got, DecisionComplete)
	}
}
