package db

// SchemaSQL is the complete schema for fresh courier installs.
//
// This is the single source of truth for the database schema. All
// repository tests load it via GetSchemaSQL() so test and production
// schemas cannot drift: a repository referencing a column missing here
// fails immediately with "no such column".
const SchemaSQL = `
-- Agents (mail-addressable AI workers)
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	display_name TEXT,
	address TEXT NOT NULL,
	team_id TEXT,
	user_id TEXT,
	persona TEXT,
	instructions TEXT,
	model TEXT,
	tools TEXT NOT NULL DEFAULT '[]',
	inbound_rule TEXT NOT NULL DEFAULT '',
	outbound_rule TEXT NOT NULL DEFAULT '',
	inbound_allow TEXT NOT NULL DEFAULT '[]',
	outbound_allow TEXT NOT NULL DEFAULT '[]',
	max_rounds INTEGER NOT NULL DEFAULT 10,
	timeout_minutes INTEGER NOT NULL DEFAULT 1440,
	max_depth INTEGER NOT NULL DEFAULT 3,
	disabled INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Teams (rosters of human member addresses)
CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id TEXT NOT NULL,
	address TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (team_id, address),
	FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
);

-- Conversation flows (one bounded multi-round exchange per row).
-- Terminal flows stay forever: termination is a state, not removal.
CREATE TABLE IF NOT EXISTS flows (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	team_id TEXT,
	user_id TEXT,
	state TEXT NOT NULL CHECK(state IN ('active', 'waiting', 'completed', 'timed_out', 'failed')),
	round INTEGER NOT NULL DEFAULT 0,
	max_rounds INTEGER NOT NULL,
	depth INTEGER NOT NULL DEFAULT 0,
	max_depth INTEGER NOT NULL DEFAULT 0,
	timeout_at DATETIME,
	wait_type TEXT,
	wait_request_id TEXT,
	wait_target_agent_id TEXT,
	wait_conversation_id TEXT,
	trigger_kind TEXT NOT NULL CHECK(trigger_kind IN ('email', 'agent')),
	parent_request_id TEXT,
	trigger_message_id TEXT NOT NULL,
	trigger_from TEXT NOT NULL,
	trigger_to TEXT,
	trigger_subject TEXT,
	trigger_body TEXT,
	trigger_html TEXT,
	trigger_in_reply_to TEXT NOT NULL DEFAULT '[]',
	trigger_references TEXT NOT NULL DEFAULT '[]',
	trigger_received_at DATETIME,
	trigger_conversation_id TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_flows_agent_state ON flows(agent_id, state);
CREATE INDEX IF NOT EXISTS idx_flows_timeout ON flows(state, timeout_at);

-- Round history (append-only, strictly ordered per flow)
CREATE TABLE IF NOT EXISTS flow_rounds (
	flow_id TEXT NOT NULL,
	round_index INTEGER NOT NULL,
	input_kind TEXT NOT NULL,
	sender TEXT,
	input TEXT,
	tool_calls TEXT NOT NULL DEFAULT '[]',
	decision TEXT NOT NULL,
	reply TEXT,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (flow_id, round_index),
	FOREIGN KEY (flow_id) REFERENCES flows(id) ON DELETE CASCADE
);

-- Webhook delivery dedup (the provider delivers at-least-once)
CREATE TABLE IF NOT EXISTS processed_messages (
	agent_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	processed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (agent_id, message_id)
);
`

// GetSchemaSQL returns the authoritative schema DDL.
func GetSchemaSQL() string {
	return SchemaSQL
}
