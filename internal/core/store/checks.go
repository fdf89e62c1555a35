package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sitelens/sitelens/internal/core"
)

// InsertPages records the discovered page set for an audit. Duplicate
// URLs are ignored so a re-run of discovery stays idempotent.
func (s *Store) InsertPages(ctx context.Context, pages []core.Page) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	now := time.Now().UTC().Unix()
	for _, page := range pages {
		_, err := s.DB.ExecContext(ctx, `
			INSERT INTO audit_pages (id, audit_id, url, checked, created_at)
			VALUES (?, ?, ?, 0, ?)
			ON CONFLICT(audit_id, url) DO NOTHING
		`, page.ID, page.AuditID, page.URL, now)
		if err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
	}
	return nil
}

// ListPages returns the discovered pages for an audit in insertion order.
func (s *Store) ListPages(ctx context.Context, auditID string) ([]core.Page, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, audit_id, url, checked FROM audit_pages
		WHERE audit_id = ? ORDER BY created_at, id
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var pages []core.Page
	for rows.Next() {
		var page core.Page
		var checked int
		if err := rows.Scan(&page.ID, &page.AuditID, &page.URL, &checked); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		page.Checked = checked != 0
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// MarkPageChecked flags a page as fully checked. Check results for the
// page must already be persisted.
func (s *Store) MarkPageChecked(ctx context.Context, auditID, pageID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE audit_pages SET checked = 1 WHERE audit_id = ? AND id = ?
	`, auditID, pageID)
	if err != nil {
		return fmt.Errorf("mark page checked: %w", err)
	}
	return nil
}

// InsertCheckResults appends check results for one page. The collection
// is append-only; re-inserting the same (audit, page, check) key keeps
// the first record.
func (s *Store) InsertCheckResults(ctx context.Context, auditID, pageID string, results []core.CheckResult) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	for _, result := range results {
		details, err := json.Marshal(result.Details)
		if err != nil {
			return fmt.Errorf("encode check details: %w", err)
		}

		createdAt := result.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err = s.DB.ExecContext(ctx, `
			INSERT INTO audit_checks (audit_id, page_id, check_name, category, priority, status, page_url, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(audit_id, page_id, check_name) DO NOTHING
		`, auditID, pageID, result.CheckName, string(result.Category), string(result.Priority),
			string(result.Status), result.PageURL, string(details), createdAt.Unix())
		if err != nil {
			return fmt.Errorf("insert check result: %w", err)
		}
	}
	return nil
}

// ListCheckResults returns all persisted check results for an audit.
func (s *Store) ListCheckResults(ctx context.Context, auditID string) ([]core.CheckResult, error) {
	return s.queryChecks(ctx, `
		SELECT check_name, category, priority, status, page_url, details, created_at
		FROM audit_checks WHERE audit_id = ? ORDER BY created_at, id
	`, auditID)
}

// RecentCheckResults returns the most recently persisted results, newest
// first, for progress snapshots.
func (s *Store) RecentCheckResults(ctx context.Context, auditID string, limit int) ([]core.CheckResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryChecks(ctx, `
		SELECT check_name, category, priority, status, page_url, details, created_at
		FROM audit_checks WHERE audit_id = ? ORDER BY id DESC LIMIT ?
	`, auditID, limit)
}

// CountCheckedPages reports how many pages of an audit completed their
// checks, letting a caller re-derive progress after a crash.
func (s *Store) CountCheckedPages(ctx context.Context, auditID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_pages WHERE audit_id = ? AND checked = 1
	`, auditID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count checked pages: %w", err)
	}
	return count, nil
}

func (s *Store) queryChecks(ctx context.Context, query string, args ...any) ([]core.CheckResult, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check results: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var results []core.CheckResult
	for rows.Next() {
		var (
			result    core.CheckResult
			category  string
			priority  string
			status    string
			details   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&result.CheckName, &category, &priority, &status, &result.PageURL, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		result.Category = core.CheckCategory(category)
		result.Priority = core.CheckPriority(priority)
		result.Status = core.CheckStatus(status)
		result.CreatedAt = time.Unix(createdAt, 0).UTC()
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &result.Details); err != nil {
				return nil, fmt.Errorf("decode check details: %w", err)
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
