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

// InsertReport persists a generated report.
func (s *Store) InsertReport(ctx context.Context, report *core.Report) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if report == nil || report.ID == "" {
		return errors.New("report id is required")
	}

	breakdown, err := json.Marshal(report.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	warnings, err := json.Marshal(report.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO reports (id, site_audit_id, performance_audit_id, aio_audit_id,
			combined_score, summary, breakdown, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.SiteAuditID, report.PerformanceAuditID, report.AIOAuditID,
		report.CombinedScore, report.Summary, string(breakdown), string(warnings), report.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads one report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*core.Report, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, site_audit_id, performance_audit_id, aio_audit_id,
		       combined_score, summary, breakdown, warnings, created_at
		FROM reports WHERE id = ?
	`, id)

	var (
		report    core.Report
		breakdown sql.NullString
		warnings  sql.NullString
		createdAt int64
	)
	err := row.Scan(&report.ID, &report.SiteAuditID, &report.PerformanceAuditID, &report.AIOAuditID,
		&report.CombinedScore, &report.Summary, &breakdown, &warnings, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	report.CreatedAt = time.Unix(createdAt, 0).UTC()
	if breakdown.Valid && breakdown.String != "" {
		if err := json.Unmarshal([]byte(breakdown.String), &report.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &report.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return &report, nil
}
