package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sitelens/sitelens/internal/core"
)

// InsertAudit persists a newly created audit record.
func (s *Store) InsertAudit(ctx context.Context, audit *core.Audit) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if audit == nil || audit.ID == "" {
		return errors.New("audit id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audits (id, org_id, audit_type, url, status, pages_found, pages_crawled, pages_analyzed, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, audit.ID, nullString(audit.OrgID), string(audit.Type), audit.URL, string(audit.Status),
		audit.PagesFound, audit.PagesCrawled, audit.PagesAnalyzed, audit.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// GetAudit loads one audit by id.
func (s *Store) GetAudit(ctx context.Context, id string) (*core.Audit, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, org_id, audit_type, url, status, pages_found, pages_crawled, pages_analyzed,
		       current_url, technical_score, strategic_score, overall_score, error_message,
		       ai_input_tokens, ai_output_tokens, ai_cost, created_at, started_at, completed_at, version
		FROM audits WHERE id = ?
	`, id)
	return scanAudit(row)
}

// UpdateAudit applies the audit's mutable fields guarded by the version
// it was read at. ErrConflict means a concurrent writer won the race and
// the caller must re-read before retrying.
func (s *Store) UpdateAudit(ctx context.Context, audit *core.Audit) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if audit == nil || audit.ID == "" {
		return errors.New("audit id is required")
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE audits SET
			status = ?,
			pages_found = ?,
			pages_crawled = ?,
			pages_analyzed = ?,
			current_url = ?,
			technical_score = ?,
			strategic_score = ?,
			overall_score = ?,
			error_message = ?,
			ai_input_tokens = ?,
			ai_output_tokens = ?,
			ai_cost = ?,
			started_at = ?,
			completed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`, string(audit.Status), audit.PagesFound, audit.PagesCrawled, audit.PagesAnalyzed,
		audit.CurrentURL, nullInt(audit.TechnicalScore), nullInt(audit.StrategicScore), nullInt(audit.OverallScore),
		audit.ErrorMessage, audit.AIInputTokens, audit.AIOutputTokens, audit.AICost,
		nullTime(audit.StartedAt), nullTime(audit.CompletedAt), audit.ID, audit.Version)
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	audit.Version++
	return nil
}

// IncrementPagesCrawled bumps the crawl counter atomically. The counter
// only ever grows.
func (s *Store) IncrementPagesCrawled(ctx context.Context, auditID string, currentURL string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE audits SET pages_crawled = pages_crawled + 1, current_url = ?, version = version + 1
		WHERE id = ?
	`, currentURL, auditID)
	if err != nil {
		return fmt.Errorf("increment pages crawled: %w", err)
	}
	return nil
}

// IncrementPagesAnalyzed bumps the checked-pages counter atomically. The
// caller must persist the page's check results first so a poller never
// sees the counter ahead of queryable results.
func (s *Store) IncrementPagesAnalyzed(ctx context.Context, auditID string, currentURL string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE audits SET pages_analyzed = pages_analyzed + 1, current_url = ?, version = version + 1
		WHERE id = ?
	`, currentURL, auditID)
	if err != nil {
		return fmt.Errorf("increment pages analyzed: %w", err)
	}
	return nil
}

// AddTokenUsage accumulates AI token and cost telemetry on the audit.
func (s *Store) AddTokenUsage(ctx context.Context, auditID string, inputTokens, outputTokens int, cost float64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE audits SET
			ai_input_tokens = ai_input_tokens + ?,
			ai_output_tokens = ai_output_tokens + ?,
			ai_cost = ai_cost + ?,
			version = version + 1
		WHERE id = ?
	`, inputTokens, outputTokens, cost, auditID)
	if err != nil {
		return fmt.Errorf("add token usage: %w", err)
	}
	return nil
}

// ListAudits returns audits for an organization, newest first.
func (s *Store) ListAudits(ctx context.Context, orgID string, limit int) ([]*core.Audit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, org_id, audit_type, url, status, pages_found, pages_crawled, pages_analyzed,
		       current_url, technical_score, strategic_score, overall_score, error_message,
		       ai_input_tokens, ai_output_tokens, ai_cost, created_at, started_at, completed_at, version
		FROM audits WHERE org_id = ? ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var audits []*core.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*core.Audit, error) {
	var (
		audit       core.Audit
		orgID       sql.NullString
		currentURL  sql.NullString
		technical   sql.NullInt64
		strategic   sql.NullInt64
		overall     sql.NullInt64
		errMessage  sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		auditType   string
		status      string
	)

	err := row.Scan(&audit.ID, &orgID, &auditType, &audit.URL, &status,
		&audit.PagesFound, &audit.PagesCrawled, &audit.PagesAnalyzed,
		&currentURL, &technical, &strategic, &overall, &errMessage,
		&audit.AIInputTokens, &audit.AIOutputTokens, &audit.AICost,
		&createdAt, &startedAt, &completedAt, &audit.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan audit: %w", err)
	}

	audit.Type = core.AuditType(auditType)
	audit.Status = core.AuditStatus(status)
	audit.CreatedAt = time.Unix(createdAt, 0).UTC()
	if orgID.Valid {
		audit.OrgID = &orgID.String
	}
	audit.CurrentURL = currentURL.String
	audit.ErrorMessage = errMessage.String
	if technical.Valid {
		v := int(technical.Int64)
		audit.TechnicalScore = &v
	}
	if strategic.Valid {
		v := int(strategic.Int64)
		audit.StrategicScore = &v
	}
	if overall.Valid {
		v := int(overall.Int64)
		audit.OverallScore = &v
	}
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		audit.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		audit.CompletedAt = &t
	}
	return &audit, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Unix()
}
