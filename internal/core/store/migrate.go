package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audits (
		id TEXT PRIMARY KEY,
		org_id TEXT,
		audit_type TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		pages_found INTEGER NOT NULL DEFAULT 0,
		pages_crawled INTEGER NOT NULL DEFAULT 0,
		pages_analyzed INTEGER NOT NULL DEFAULT 0,
		current_url TEXT,
		technical_score INTEGER,
		strategic_score INTEGER,
		overall_score INTEGER,
		error_message TEXT,
		ai_input_tokens INTEGER NOT NULL DEFAULT 0,
		ai_output_tokens INTEGER NOT NULL DEFAULT 0,
		ai_cost REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		version INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audits_org ON audits(org_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_audits_status ON audits(status);`,
	`CREATE TABLE IF NOT EXISTS audit_pages (
		id TEXT PRIMARY KEY,
		audit_id TEXT NOT NULL,
		url TEXT NOT NULL,
		checked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE(audit_id, url)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_pages_audit ON audit_pages(audit_id);`,
	`CREATE TABLE IF NOT EXISTS audit_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		audit_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		check_name TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		page_url TEXT NOT NULL,
		details TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(audit_id, page_id, check_name)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_checks_audit ON audit_checks(audit_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS ai_analyses (
		id TEXT PRIMARY KEY,
		audit_id TEXT NOT NULL,
		page_url TEXT NOT NULL,
		data_quality INTEGER NOT NULL,
		expert_credibility INTEGER NOT NULL,
		comprehensiveness INTEGER NOT NULL,
		citability INTEGER NOT NULL,
		authority INTEGER NOT NULL,
		overall_score INTEGER NOT NULL,
		findings TEXT,
		recommendations TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(audit_id, page_url)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ai_analyses_audit ON ai_analyses(audit_id);`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		site_audit_id TEXT NOT NULL,
		performance_audit_id TEXT NOT NULL,
		aio_audit_id TEXT NOT NULL,
		combined_score INTEGER NOT NULL,
		summary TEXT NOT NULL,
		breakdown TEXT,
		warnings TEXT,
		created_at INTEGER NOT NULL
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
