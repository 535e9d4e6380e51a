// Package sqlite_test contains integration tests for the SQLite
// repositories. Test databases are in-memory and load the
// authoritative schema via db.GetSchemaSQL(), so a repository
// referencing a column the schema lacks fails here, not in
// production.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/db"
	"github.com/example/courier/internal/models"
)

// setupTestDB creates an in-memory database with the authoritative
// schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// testFlow builds a minimal valid flow for persistence tests.
func testFlow(id, agentID string) *flow.Flow {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return &flow.Flow{
		ID:          id,
		AgentID:     agentID,
		TeamID:      "team-1",
		UserID:      "user-1",
		State:       flow.StateActive,
		Round:       0,
		MaxRounds:   10,
		MaxDepth:    3,
		TriggerKind: flow.TriggerEmail,
		Trigger: models.Email{
			MessageID:      "m1@x.com",
			From:           "alice@example.com",
			To:             "helpdesk@agents.example.com",
			Subject:        "Need help",
			Body:           "Please help me with the thing.",
			InReplyTo:      []string{},
			References:     []string{},
			ReceivedAt:     now,
			ConversationID: "m1@x.com",
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
