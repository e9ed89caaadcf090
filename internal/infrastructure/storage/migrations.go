package storage

import (
	"context"
	"fmt"
)

// migration is a single schema step. Statements use {{id}}, {{ts}} and {{float}}
// for the dialect-specific column types.
type migration struct {
	version     int
	description string
	statements  []string
}

// migrations is the ordered list of schema steps. Append new steps with incrementing versions.
var migrations = []migration{
	{
		version:     1,
		description: "pipeline schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS processing_records (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    reference VARCHAR(255) NOT NULL,
    fingerprint VARCHAR(64) NOT NULL,
    outcome VARCHAR(16) NOT NULL,
    status_reason TEXT,
    dedup_reason VARCHAR(64),
    translation_language VARCHAR(16),
    fake_detected BOOLEAN NOT NULL DEFAULT FALSE,
    fake_confidence {{float}} NOT NULL DEFAULT 0,
    classification_score {{float}} NOT NULL DEFAULT 0,
    classification_summary TEXT,
    classification_flags TEXT,
    logs TEXT,
    created_at {{ts}} NOT NULL,
    updated_at {{ts}} NOT NULL,
    UNIQUE (workspace, reference)
)`,
			`CREATE INDEX IF NOT EXISTS ix_processing_records_fingerprint ON processing_records (workspace, fingerprint)`,
			`CREATE TABLE IF NOT EXISTS news_articles (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    slug VARCHAR(255) NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    body TEXT NOT NULL,
    author TEXT,
    published_at {{ts}} NOT NULL,
    UNIQUE (workspace, slug)
)`,
			`CREATE TABLE IF NOT EXISTS moderation_requests (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    reference VARCHAR(255) NOT NULL,
    status VARCHAR(16) NOT NULL,
    submitted_at {{ts}} NOT NULL,
    content_title TEXT NOT NULL,
    content_excerpt TEXT,
    ai_score {{float}} NOT NULL DEFAULT 0,
    ai_summary TEXT,
    ai_flags TEXT
)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_moderation_requests_pending
    ON moderation_requests (workspace, reference) WHERE status = 'pending'`,
			`CREATE INDEX IF NOT EXISTS ix_moderation_requests_reference ON moderation_requests (workspace, reference)`,
			`CREATE TABLE IF NOT EXISTS moderation_decisions (
    id {{id}},
    request_id BIGINT NOT NULL REFERENCES moderation_requests (id),
    decision VARCHAR(16) NOT NULL,
    decided_by VARCHAR(128) NOT NULL,
    reason TEXT,
    decided_at {{ts}} NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS ix_moderation_decisions_request ON moderation_decisions (request_id)`,
			`CREATE TABLE IF NOT EXISTS pipeline_runs (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    task_id VARCHAR(64) NOT NULL,
    status VARCHAR(16) NOT NULL,
    message TEXT,
    created_at {{ts}} NOT NULL,
    started_at {{ts}},
    finished_at {{ts}},
    UNIQUE (workspace, task_id)
)`,
			`CREATE TABLE IF NOT EXISTS workspace_sources (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    name VARCHAR(255) NOT NULL,
    kind VARCHAR(16) NOT NULL,
    endpoint TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at {{ts}} NOT NULL,
    UNIQUE (workspace, name)
)`,
			`CREATE TABLE IF NOT EXISTS workspace_proxies (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    name VARCHAR(255) NOT NULL,
    protocol VARCHAR(16) NOT NULL,
    address TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at {{ts}} NOT NULL,
    UNIQUE (workspace, name)
)`,
			`CREATE TABLE IF NOT EXISTS delivery_channels (
    id {{id}},
    workspace VARCHAR(128) NOT NULL,
    name VARCHAR(255) NOT NULL,
    chat_id VARCHAR(128) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at {{ts}} NOT NULL,
    UNIQUE (workspace, name)
)`,
		},
	},
	{
		version:     2,
		description: "delivery ledger",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS delivery_attempts (
    workspace VARCHAR(128) NOT NULL,
    reference VARCHAR(255) NOT NULL,
    chat_id VARCHAR(128) NOT NULL,
    delivered_at {{ts}} NOT NULL,
    PRIMARY KEY (workspace, reference, chat_id)
)`,
		},
	},
}

// migrate brings the schema up to the latest version, tracking applied steps in schema_migrations.
func (s *Store) migrate(ctx context.Context) error {
	createTable := s.dialect.ddl.Replace(`CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at {{ts}} NOT NULL
)`)
	if _, err := s.conn.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		s.logger.Info("applying migration", "version", m.version, "description", m.description)

		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, s.dialect.ddl.Replace(stmt)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
		}

		q := newQueries(tx, s.dialect)
		insert := q.sb.Insert("schema_migrations").
			Columns("version", "description", "applied_at").
			Values(m.version, m.description, q.now())
		if _, err := q.exec(ctx, insert); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return s.schemaVersion(ctx)
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	row, err := s.queryRow(ctx, s.sb.Select("COALESCE(MAX(version), 0)").From("schema_migrations"))
	if err != nil {
		return 0, err
	}
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
