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

// InsertAnalyses persists the batch of AI analyses for an audit. One
// analysis per page; re-inserting a page keeps the first record.
func (s *Store) InsertAnalyses(ctx context.Context, analyses []core.AIAnalysis) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	for _, analysis := range analyses {
		findings, err := json.Marshal(analysis.Findings)
		if err != nil {
			return fmt.Errorf("encode findings: %w", err)
		}
		recommendations, err := json.Marshal(analysis.Recommendations)
		if err != nil {
			return fmt.Errorf("encode recommendations: %w", err)
		}

		createdAt := analysis.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err = s.DB.ExecContext(ctx, `
			INSERT INTO ai_analyses (id, audit_id, page_url, data_quality, expert_credibility,
				comprehensiveness, citability, authority, overall_score, findings, recommendations, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(audit_id, page_url) DO NOTHING
		`, analysis.ID, analysis.AuditID, analysis.PageURL,
			analysis.Scores.DataQuality, analysis.Scores.ExpertCredibility,
			analysis.Scores.Comprehensiveness, analysis.Scores.Citability, analysis.Scores.Authority,
			analysis.OverallScore, string(findings), string(recommendations), createdAt.Unix())
		if err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
	}
	return nil
}

// ListAnalyses returns all AI analyses for an audit.
func (s *Store) ListAnalyses(ctx context.Context, auditID string) ([]core.AIAnalysis, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, audit_id, page_url, data_quality, expert_credibility, comprehensiveness,
		       citability, authority, overall_score, findings, recommendations, created_at
		FROM ai_analyses WHERE audit_id = ? ORDER BY created_at, id
	`, auditID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var analyses []core.AIAnalysis
	for rows.Next() {
		var (
			analysis        core.AIAnalysis
			findings        sql.NullString
			recommendations sql.NullString
			createdAt       int64
		)
		err := rows.Scan(&analysis.ID, &analysis.AuditID, &analysis.PageURL,
			&analysis.Scores.DataQuality, &analysis.Scores.ExpertCredibility,
			&analysis.Scores.Comprehensiveness, &analysis.Scores.Citability, &analysis.Scores.Authority,
			&analysis.OverallScore, &findings, &recommendations, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}

		analysis.CreatedAt = time.Unix(createdAt, 0).UTC()
		if findings.Valid && findings.String != "" {
			if err := json.Unmarshal([]byte(findings.String), &analysis.Findings); err != nil {
				return nil, fmt.Errorf("decode findings: %w", err)
			}
		}
		if recommendations.Valid && recommendations.String != "" {
			if err := json.Unmarshal([]byte(recommendations.String), &analysis.Recommendations); err != nil {
				return nil, fmt.Errorf("decode recommendations: %w", err)
			}
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}
