package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/courier/internal/ports/secondary"
)

// ProcessedMessageRepository implements secondary.ProcessedMessageStore
// with an insert-or-ignore dedup table.
type ProcessedMessageRepository struct {
	db *sql.DB
}

// NewProcessedMessageRepository creates a new dedup repository.
func NewProcessedMessageRepository(db *sql.DB) *ProcessedMessageRepository {
	return &ProcessedMessageRepository{db: db}
}

// MarkProcessed records (agentID, messageID) and reports whether this
// is the first delivery of the pair. The primary key makes the insert
// a no-op on redelivery, so the check and the record are one atomic
// statement.
func (r *ProcessedMessageRepository) MarkProcessed(ctx context.Context, agentID, messageID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (agent_id, message_id) VALUES (?, ?)`,
		agentID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to mark message processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup result: %w", err)
	}
	return affected == 1, nil
}

// Ensure ProcessedMessageRepository implements the interface.
var _ secondary.ProcessedMessageStore = (*ProcessedMessageRepository)(nil)
