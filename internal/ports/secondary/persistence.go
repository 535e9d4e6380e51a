// Package secondary defines the secondary ports (driven adapters) for
// the application. These are the interfaces through which the engine
// drives storage, mail transport, and the agent reasoning step.
package secondary

import (
	"context"
	"errors"
	"time"

	"github.com/example/courier/internal/core/flow"
)

// ErrStaleFlow is returned by FlowRepository.Update when the stored
// version no longer matches the version the caller loaded. The loser
// of a same-flow race must re-read instead of overwriting history.
var ErrStaleFlow = errors.New("flow was modified concurrently")

// ErrFlowNotFound is returned when no flow exists for the given id.
var ErrFlowNotFound = errors.New("flow not found")

// FlowRepository defines the secondary port for conversation flow
// persistence. Flows are keyed by id and listable by (agent, state).
// History rows are append-only and strictly ordered by round index.
type FlowRepository interface {
	// Create persists a new flow including its trigger and history.
	Create(ctx context.Context, f *flow.Flow) error

	// GetByID retrieves a flow with its full history.
	GetByID(ctx context.Context, id string) (*flow.Flow, error)

	// ListByAgent retrieves flows for an agent, optionally filtered to
	// the given states. History is loaded for each returned flow.
	ListByAgent(ctx context.Context, agentID string, states ...flow.State) ([]*flow.Flow, error)

	// Update persists flow mutations with compare-and-swap on the
	// stored version: the write succeeds only if the persisted version
	// equals f.Version, and bumps it by one. Returns ErrStaleFlow on a
	// lost race. New history entries past the persisted count are
	// appended.
	Update(ctx context.Context, f *flow.Flow) error

	// ListExpired retrieves waiting flows whose timeout has passed.
	ListExpired(ctx context.Context, now time.Time) ([]*flow.Flow, error)
}

// ProcessedMessageStore deduplicates webhook deliveries. The mail
// provider delivers at-least-once; a redelivered payload must not
// execute a second round.
type ProcessedMessageStore interface {
	// MarkProcessed records (agentID, messageID) and reports whether
	// this is the first time the pair was seen.
	MarkProcessed(ctx context.Context, agentID, messageID string) (first bool, err error)
}
