package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS facts (
		id         TEXT PRIMARY KEY,
		agent      TEXT NOT NULL,
		kind       TEXT NOT NULL,
		content    TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		entities   TEXT NOT NULL DEFAULT '[]',
		source     TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 1.0
	)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS facts_fts USING fts5(
		content,
		agent,
		kind,
		content=facts,
		content_rowid=rowid
	)`,

	`CREATE TRIGGER IF NOT EXISTS facts_ai AFTER INSERT ON facts BEGIN
		INSERT INTO facts_fts(rowid, content, agent, kind)
		VALUES (new.rowid, new.content, new.agent, new.kind);
	END`,

	`CREATE TRIGGER IF NOT EXISTS facts_ad AFTER DELETE ON facts BEGIN
		INSERT INTO facts_fts(facts_fts, rowid, content, agent, kind)
		VALUES ('delete', old.rowid, old.content, old.agent, old.kind);
	END`,

	`CREATE INDEX IF NOT EXISTS idx_facts_agent ON facts(agent)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_timestamp ON facts(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_kind ON facts(kind)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
