// Package sqlite contains SQLite implementations of the repository
// interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/ports/secondary"
)

// FlowRepository implements secondary.FlowRepository with SQLite.
// Same-flow writers are serialized by compare-and-swap on the version
// column; cross-flow writers never contend on anything but the
// database file itself.
type FlowRepository struct {
	db *sql.DB
}

// NewFlowRepository creates a new SQLite flow repository.
func NewFlowRepository(db *sql.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

const flowColumns = `id, agent_id, team_id, user_id, state, round, max_rounds, depth, max_depth,
	timeout_at, wait_type, wait_request_id, wait_target_agent_id, wait_conversation_id,
	trigger_kind, parent_request_id,
	trigger_message_id, trigger_from, trigger_to, trigger_subject, trigger_body, trigger_html,
	trigger_in_reply_to, trigger_references, trigger_received_at, trigger_conversation_id,
	version, created_at, updated_at`

// Create persists a new flow including its trigger and any pre-seeded
// history rounds.
func (r *FlowRepository) Create(ctx context.Context, f *flow.Flow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inReplyTo, err := json.Marshal(emptyIfNil(f.Trigger.InReplyTo))
	if err != nil {
		return fmt.Errorf("failed to marshal in_reply_to: %w", err)
	}
	references, err := json.Marshal(emptyIfNil(f.Trigger.References))
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flows (`+flowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.AgentID, f.TeamID, f.UserID, string(f.State), f.Round, f.MaxRounds, f.Depth, f.MaxDepth,
		nullTime(f.TimeoutAt), waitType(f.Waiting), waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.RequestID }),
		waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.TargetAgentID }),
		waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.ConversationID }),
		string(f.TriggerKind), f.ParentRequestID,
		f.Trigger.MessageID, f.Trigger.From, f.Trigger.To, f.Trigger.Subject, f.Trigger.Body, f.Trigger.HTML,
		string(inReplyTo), string(references), f.Trigger.ReceivedAt, f.Trigger.ConversationID,
		f.Version, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}

	for _, rec := range f.History {
		if err := insertRound(ctx, tx, f.ID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flow: %w", err)
	}
	return nil
}

// GetByID retrieves a flow with its full history.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*flow.Flow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = ?`, id)
	f, err := scanFlow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flow %s: %w", id, secondary.ErrFlowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if err := r.loadHistory(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ListByAgent retrieves an agent's flows, optionally filtered by state.
func (r *FlowRepository) ListByAgent(ctx context.Context, agentID string, states ...flow.State) ([]*flow.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE agent_id = ?`
	args := []any{agentID}

	if len(states) > 0 {
		placeholders := strings.Repeat("?, ", len(states))
		query += ` AND state IN (` + placeholders[:len(placeholders)-2] + `)`
		for _, s := range states {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at ASC`

	return r.queryFlows(ctx, query, args...)
}

// ListExpired retrieves waiting flows whose timeout has passed.
func (r *FlowRepository) ListExpired(ctx context.Context, now time.Time) ([]*flow.Flow, error) {
	return r.queryFlows(ctx, `SELECT `+flowColumns+` FROM flows
		WHERE state = 'waiting' AND timeout_at IS NOT NULL AND timeout_at <= ?
		ORDER BY timeout_at ASC`, now)
}

// Update persists flow mutations with compare-and-swap on version.
func (r *FlowRepository) Update(ctx context.Context, f *flow.Flow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE flows SET
			state = ?, round = ?, timeout_at = ?,
			wait_type = ?, wait_request_id = ?, wait_target_agent_id = ?, wait_conversation_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(f.State), f.Round, nullTime(f.TimeoutAt),
		waitType(f.Waiting), waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.RequestID }),
		waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.TargetAgentID }),
		waitField(f.Waiting, func(w *flow.WaitingFor) string { return w.ConversationID }),
		f.UpdatedAt, f.ID, f.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM flows WHERE id = ?", f.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check flow existence: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("flow %s: %w", f.ID, secondary.ErrFlowNotFound)
		}
		return fmt.Errorf("flow %s: %w", f.ID, secondary.ErrStaleFlow)
	}

	// Append history rows the database has not seen yet. Rounds are
	// append-only; existing rows are never touched.
	var persisted int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM flow_rounds WHERE flow_id = ?", f.ID).Scan(&persisted); err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}
	for _, rec := range f.History {
		if rec.Index < persisted {
			continue
		}
		if err := insertRound(ctx, tx, f.ID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flow update: %w", err)
	}

	f.Version++
	return nil
}

func (r *FlowRepository) queryFlows(ctx context.Context, query string, args ...any) ([]*flow.Flow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []*flow.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flows: %w", err)
	}

	for _, f := range flows {
		if err := r.loadHistory(ctx, f); err != nil {
			return nil, err
		}
	}
	return flows, nil
}

func (r *FlowRepository) loadHistory(ctx context.Context, f *flow.Flow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT round_index, input_kind, sender, input, tool_calls, decision, reply, created_at
		FROM flow_rounds WHERE flow_id = ? ORDER BY round_index ASC`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       flow.RoundRecord
			inputKind string
			decision  string
			sender    sql.NullString
			input     sql.NullString
			reply     sql.NullString
			toolCalls string
		)
		if err := rows.Scan(&rec.Index, &inputKind, &sender, &input, &toolCalls, &decision, &reply, &rec.Timestamp); err != nil {
			return fmt.Errorf("failed to scan round: %w", err)
		}
		rec.InputKind = flow.TriggerKind(inputKind)
		rec.Decision = flow.Decision(decision)
		rec.From = sender.String
		rec.Input = input.String
		rec.Reply = reply.String
		if err := json.Unmarshal([]byte(toolCalls), &rec.ToolCalls); err != nil {
			return fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
		f.History = append(f.History, rec)
	}
	return rows.Err()
}

func insertRound(ctx context.Context, tx *sql.Tx, flowID string, rec flow.RoundRecord) error {
	toolCalls, err := json.Marshal(rec.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	if rec.ToolCalls == nil {
		toolCalls = []byte("[]")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_rounds (flow_id, round_index, input_kind, sender, input, tool_calls, decision, reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flowID, rec.Index, string(rec.InputKind), rec.From, rec.Input, string(toolCalls), string(rec.Decision), rec.Reply, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert round %d: %w", rec.Index, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFlow(row scanner) (*flow.Flow, error) {
	var (
		f                flow.Flow
		state            string
		triggerKind      string
		teamID, userID   sql.NullString
		parentRequestID  sql.NullString
		timeoutAt        sql.NullTime
		waitTypeCol      sql.NullString
		waitRequestID    sql.NullString
		waitTarget       sql.NullString
		waitConversation sql.NullString
		to, subject      sql.NullString
		body, html       sql.NullString
		inReplyTo        string
		references       string
		receivedAt       sql.NullTime
	)

	err := row.Scan(
		&f.ID, &f.AgentID, &teamID, &userID, &state, &f.Round, &f.MaxRounds, &f.Depth, &f.MaxDepth,
		&timeoutAt, &waitTypeCol, &waitRequestID, &waitTarget, &waitConversation,
		&triggerKind, &parentRequestID,
		&f.Trigger.MessageID, &f.Trigger.From, &to, &subject, &body, &html,
		&inReplyTo, &references, &receivedAt, &f.Trigger.ConversationID,
		&f.Version, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.TeamID = teamID.String
	f.UserID = userID.String
	f.State = flow.State(state)
	f.TriggerKind = flow.TriggerKind(triggerKind)
	f.ParentRequestID = parentRequestID.String
	f.Trigger.To = to.String
	f.Trigger.Subject = subject.String
	f.Trigger.Body = body.String
	f.Trigger.HTML = html.String
	if timeoutAt.Valid {
		t := timeoutAt.Time
		f.TimeoutAt = &t
	}
	if receivedAt.Valid {
		f.Trigger.ReceivedAt = receivedAt.Time
	}
	if waitTypeCol.Valid && waitTypeCol.String != "" {
		f.Waiting = &flow.WaitingFor{
			Type:           flow.WaitKind(waitTypeCol.String),
			RequestID:      waitRequestID.String,
			TargetAgentID:  waitTarget.String,
			ConversationID: waitConversation.String,
		}
	}
	if err := json.Unmarshal([]byte(inReplyTo), &f.Trigger.InReplyTo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal in_reply_to: %w", err)
	}
	if err := json.Unmarshal([]byte(references), &f.Trigger.References); err != nil {
		return nil, fmt.Errorf("failed to unmarshal references: %w", err)
	}

	return &f, nil
}

func waitType(w *flow.WaitingFor) any {
	if w == nil {
		return nil
	}
	return string(w.Type)
}

func waitField(w *flow.WaitingFor, pick func(*flow.WaitingFor) string) any {
	if w == nil {
		return nil
	}
	return pick(w)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure FlowRepository implements the interface.
var _ secondary.FlowRepository = (*FlowRepository)(nil)
