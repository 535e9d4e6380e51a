package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/secondary"
)

// DirectoryRepository implements secondary.DirectoryProvider with
// SQLite-backed agent and team tables.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository creates a new SQLite directory repository.
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// Snapshot returns the current agents and teams as one read-only view.
func (r *DirectoryRepository) Snapshot(ctx context.Context) (*models.Directory, error) {
	agents, err := r.listAgents(ctx)
	if err != nil {
		return nil, err
	}
	teams, err := r.listTeams(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Directory{Agents: agents, Teams: teams}, nil
}

func (r *DirectoryRepository) listAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, display_name, address, team_id, user_id, persona, instructions, model,
			tools, inbound_rule, outbound_rule, inbound_allow, outbound_allow,
			max_rounds, timeout_minutes, max_depth, disabled
		FROM agents ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var (
			a             models.Agent
			displayName   sql.NullString
			teamID        sql.NullString
			userID        sql.NullString
			persona       sql.NullString
			instructions  sql.NullString
			model         sql.NullString
			tools         string
			inboundAllow  string
			outboundAllow string
			disabled      int
		)
		err := rows.Scan(&a.ID, &a.Username, &displayName, &a.Address, &teamID, &userID,
			&persona, &instructions, &model, &tools, &a.InboundRule, &a.OutboundRule,
			&inboundAllow, &outboundAllow, &a.MaxRounds, &a.TimeoutMinutes, &a.MaxDepth, &disabled)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		a.DisplayName = displayName.String
		a.TeamID = teamID.String
		a.UserID = userID.String
		a.Persona = persona.String
		a.Instructions = instructions.String
		a.Model = model.String
		a.Disabled = disabled == 1
		if err := json.Unmarshal([]byte(tools), &a.Tools); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tools for agent %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(inboundAllow), &a.InboundAllow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inbound allow for agent %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(outboundAllow), &a.OutboundAllow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outbound allow for agent %s: %w", a.ID, err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (r *DirectoryRepository) listTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM teams ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range teams {
		memberRows, err := r.db.QueryContext(ctx,
			`SELECT address FROM team_members WHERE team_id = ? ORDER BY address ASC`, teams[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list team members: %w", err)
		}
		for memberRows.Next() {
			var addr string
			if err := memberRows.Scan(&addr); err != nil {
				memberRows.Close()
				return nil, fmt.Errorf("failed to scan team member: %w", err)
			}
			teams[i].Members = append(teams[i].Members, addr)
		}
		if err := memberRows.Err(); err != nil {
			memberRows.Close()
			return nil, err
		}
		memberRows.Close()
	}
	return teams, nil
}

// SaveAgent inserts or updates an agent definition.
func (r *DirectoryRepository) SaveAgent(ctx context.Context, agent models.Agent) error {
	tools, err := json.Marshal(emptyIfNil(agent.Tools))
	if err != nil {
		return fmt.Errorf("failed to marshal tools: %w", err)
	}
	inboundAllow, err := json.Marshal(emptyIfNil(agent.InboundAllow))
	if err != nil {
		return fmt.Errorf("failed to marshal inbound allow: %w", err)
	}
	outboundAllow, err := json.Marshal(emptyIfNil(agent.OutboundAllow))
	if err != nil {
		return fmt.Errorf("failed to marshal outbound allow: %w", err)
	}

	disabled := 0
	if agent.Disabled {
		disabled = 1
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agents (id, username, display_name, address, team_id, user_id, persona, instructions, model,
			tools, inbound_rule, outbound_rule, inbound_allow, outbound_allow,
			max_rounds, timeout_minutes, max_depth, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			address = excluded.address,
			team_id = excluded.team_id,
			user_id = excluded.user_id,
			persona = excluded.persona,
			instructions = excluded.instructions,
			model = excluded.model,
			tools = excluded.tools,
			inbound_rule = excluded.inbound_rule,
			outbound_rule = excluded.outbound_rule,
			inbound_allow = excluded.inbound_allow,
			outbound_allow = excluded.outbound_allow,
			max_rounds = excluded.max_rounds,
			timeout_minutes = excluded.timeout_minutes,
			max_depth = excluded.max_depth,
			disabled = excluded.disabled,
			updated_at = CURRENT_TIMESTAMP`,
		agent.ID, agent.Username, agent.DisplayName, agent.Address, nullString(agent.TeamID), nullString(agent.UserID),
		agent.Persona, agent.Instructions, agent.Model,
		string(tools), agent.InboundRule, agent.OutboundRule, string(inboundAllow), string(outboundAllow),
		agent.MaxRounds, agent.TimeoutMinutes, agent.MaxDepth, disabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

// SaveTeam inserts or updates a team and replaces its roster.
func (r *DirectoryRepository) SaveTeam(ctx context.Context, team models.Team) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		team.ID, team.Name)
	if err != nil {
		return fmt.Errorf("failed to save team: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, team.ID); err != nil {
		return fmt.Errorf("failed to clear team roster: %w", err)
	}
	for _, member := range team.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, address) VALUES (?, ?)`, team.ID, member); err != nil {
			return fmt.Errorf("failed to add team member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit team: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure DirectoryRepository implements the interface.
var _ secondary.DirectoryProvider = (*DirectoryRepository)(nil)
