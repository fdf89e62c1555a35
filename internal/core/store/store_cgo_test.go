//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	st, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestAudit(t *testing.T, st *Store, auditType core.AuditType) *core.Audit {
	t.Helper()

	audit := &core.Audit{
		ID:        uuid.NewString(),
		Type:      auditType,
		URL:       "https://example.com",
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertAudit(context.Background(), audit))
	return audit
}

func TestAuditRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeSite)

	loaded, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, audit.ID, loaded.ID)
	require.Equal(t, core.StatusPending, loaded.Status)
	require.Nil(t, loaded.OverallScore)
	require.Zero(t, loaded.Version)
}

func TestGetAuditNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetAudit(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAuditVersionGuard(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeSite)

	first, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)
	second, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)

	first.Status = core.StatusCrawling
	require.NoError(t, st.UpdateAudit(ctx, first))
	require.Equal(t, int64(1), first.Version)

	// The second reader still holds version 0; its write must lose.
	second.Status = core.StatusStopped
	require.ErrorIs(t, st.UpdateAudit(ctx, second), ErrConflict)

	loaded, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, core.StatusCrawling, loaded.Status)
}

func TestCountersBumpVersion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeSite)

	stale, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)

	require.NoError(t, st.IncrementPagesCrawled(ctx, audit.ID, "https://example.com/a"))
	require.NoError(t, st.IncrementPagesAnalyzed(ctx, audit.ID, "https://example.com/a"))

	loaded, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.PagesCrawled)
	require.Equal(t, 1, loaded.PagesAnalyzed)
	require.Equal(t, "https://example.com/a", loaded.CurrentURL)

	// A writer that read before the counters moved must now conflict.
	stale.Status = core.StatusChecking
	require.ErrorIs(t, st.UpdateAudit(ctx, stale), ErrConflict)
}

func TestAddTokenUsageAccumulates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeAIO)

	require.NoError(t, st.AddTokenUsage(ctx, audit.ID, 100, 40, 0.015))
	require.NoError(t, st.AddTokenUsage(ctx, audit.ID, 50, 10, 0.005))

	loaded, err := st.GetAudit(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, 150, loaded.AIInputTokens)
	require.Equal(t, 50, loaded.AIOutputTokens)
	require.InDelta(t, 0.02, loaded.AICost, 0.0001)
}

func TestInsertPagesIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeSite)

	pages := []core.Page{
		{ID: uuid.NewString(), AuditID: audit.ID, URL: "https://example.com"},
		{ID: uuid.NewString(), AuditID: audit.ID, URL: "https://example.com/about"},
	}
	require.NoError(t, st.InsertPages(ctx, pages))

	// Same URLs again under new ids; the first records win.
	dupes := []core.Page{
		{ID: uuid.NewString(), AuditID: audit.ID, URL: "https://example.com"},
		{ID: uuid.NewString(), AuditID: audit.ID, URL: "https://example.com/about"},
	}
	require.NoError(t, st.InsertPages(ctx, dupes))

	listed, err := st.ListPages(ctx, audit.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, pages[0].ID, listed[0].ID)
}

func TestCheckResultsLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeSite)
	page := core.Page{ID: uuid.NewString(), AuditID: audit.ID, URL: "https://example.com"}
	require.NoError(t, st.InsertPages(ctx, []core.Page{page}))

	now := time.Now().UTC().Truncate(time.Second)
	results := []core.CheckResult{
		{
			CheckName: "page-title",
			Category:  core.CategoryTechnicalFoundation,
			Priority:  core.PriorityCritical,
			Status:    core.CheckPassed,
			PageURL:   page.URL,
			Details:   map[string]any{"length": float64(42)},
			CreatedAt: now,
		},
		{
			CheckName: "meta-description",
			Category:  core.CategoryTechnicalFoundation,
			Priority:  core.PriorityCritical,
			Status:    core.CheckFailed,
			PageURL:   page.URL,
			CreatedAt: now,
		},
	}
	require.NoError(t, st.InsertCheckResults(ctx, audit.ID, page.ID, results))

	// Re-inserting the same keys keeps the first records.
	overwrite := []core.CheckResult{{
		CheckName: "page-title",
		Status:    core.CheckFailed,
		PageURL:   page.URL,
		CreatedAt: now,
	}}
	require.NoError(t, st.InsertCheckResults(ctx, audit.ID, page.ID, overwrite))

	listed, err := st.ListCheckResults(ctx, audit.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, core.CheckPassed, listed[0].Status)
	require.Equal(t, map[string]any{"length": float64(42)}, listed[0].Details)

	recent, err := st.RecentCheckResults(ctx, audit.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "meta-description", recent[0].CheckName)

	count, err := st.CountCheckedPages(ctx, audit.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, st.MarkPageChecked(ctx, audit.ID, page.ID))
	count, err = st.CountCheckedPages(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAnalysesRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	audit := newTestAudit(t, st, core.AuditTypeAIO)
	analyses := []core.AIAnalysis{{
		ID:      uuid.NewString(),
		AuditID: audit.ID,
		PageURL: "https://example.com",
		Scores: core.DimensionScores{
			DataQuality:       80,
			ExpertCredibility: 70,
			Comprehensiveness: 90,
			Citability:        60,
			Authority:         100,
		},
		OverallScore: 77,
		Findings:     map[string]any{"table_count": float64(3)},
		Recommendations: []core.Recommendation{{
			Priority:       core.PriorityCritical,
			Category:       "content-quality",
			Issue:          "no author byline",
			Recommendation: "attribute articles to named experts",
		}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}}
	require.NoError(t, st.InsertAnalyses(ctx, analyses))

	listed, err := st.ListAnalyses(ctx, audit.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, 77, listed[0].OverallScore)
	require.Equal(t, 80, listed[0].Scores.DataQuality)
	require.Len(t, listed[0].Recommendations, 1)
	require.Equal(t, "no author byline", listed[0].Recommendations[0].Issue)
}

func TestReportRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	site := newTestAudit(t, st, core.AuditTypeSite)
	performance := newTestAudit(t, st, core.AuditTypePerformance)
	aio := newTestAudit(t, st, core.AuditTypeAIO)

	report := &core.Report{
		ID:                 uuid.NewString(),
		SiteAuditID:        site.ID,
		PerformanceAuditID: performance.ID,
		AIOAuditID:         aio.ID,
		CombinedScore:      76,
		Summary:            "Combined score 76/100",
		Breakdown: []core.Contribution{
			{Category: "seo", Score: 90, Weight: 0.5, Points: 45, Percent: 59.2},
		},
		Warnings:  []string{"audits created 96h0m0s apart"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.InsertReport(ctx, report))

	loaded, err := st.GetReport(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, 76, loaded.CombinedScore)
	require.Len(t, loaded.Breakdown, 1)
	require.Equal(t, "seo", loaded.Breakdown[0].Category)
	require.Len(t, loaded.Warnings, 1)

	_, err = st.GetReport(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAuditsByOrg(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	org := "org-1"
	for i := 0; i < 3; i++ {
		audit := &core.Audit{
			ID:        uuid.NewString(),
			OrgID:     &org,
			Type:      core.AuditTypeSite,
			URL:       "https://example.com",
			Status:    core.StatusPending,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, st.InsertAudit(ctx, audit))
	}
	newTestAudit(t, st, core.AuditTypeSite) // no org, must not be listed

	audits, err := st.ListAudits(ctx, org, 10)
	require.NoError(t, err)
	require.Len(t, audits, 3)
	require.True(t, audits[0].CreatedAt.After(audits[2].CreatedAt))
}
