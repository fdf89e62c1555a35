package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens/internal/core"
)

func completedAudit(auditType core.AuditType, rawURL string, score int, createdAt time.Time) *core.Audit {
	s := score
	return &core.Audit{
		ID:           string(auditType) + "-audit",
		Type:         auditType,
		URL:          rawURL,
		Status:       core.StatusCompleted,
		OverallScore: &s,
		CreatedAt:    createdAt,
	}
}

func eligibleTriple(base time.Time) (*core.Audit, *core.Audit, *core.Audit) {
	site := completedAudit(core.AuditTypeSite, "https://example.com", 90, base)
	performance := completedAudit(core.AuditTypePerformance, "https://example.com", 70, base.Add(time.Hour))
	aio := completedAudit(core.AuditTypeAIO, "https://example.com", 50, base.Add(2*time.Hour))
	return site, performance, aio
}

func TestCombineFormula(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{Clock: func() time.Time { return base }}

	site, performance, aio := eligibleTriple(base)
	combined, err := combiner.Combine(site, performance, aio)
	require.NoError(t, err)

	// round(90*0.5 + 70*0.3 + 50*0.2)
	require.Equal(t, 76, combined.CombinedScore)
	require.Empty(t, combined.Warnings)
	require.Equal(t, site.ID, combined.SiteAuditID)
	require.Equal(t, performance.ID, combined.PerformanceAuditID)
	require.Equal(t, aio.ID, combined.AIOAuditID)

	require.Len(t, combined.Breakdown, 3)
	require.Equal(t, "seo", combined.Breakdown[0].Category)
	require.InDelta(t, 45.0, combined.Breakdown[0].Points, 0.001)
	require.InDelta(t, 59.2, combined.Breakdown[0].Percent, 0.1)
	require.Equal(t, "page-speed", combined.Breakdown[1].Category)
	require.InDelta(t, 21.0, combined.Breakdown[1].Points, 0.001)
	require.Equal(t, "aio", combined.Breakdown[2].Category)
	require.InDelta(t, 10.0, combined.Breakdown[2].Points, 0.001)
}

func TestCombineZeroScoreIsEligible(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{}

	site, performance, aio := eligibleTriple(base)
	zero := 0
	aio.OverallScore = &zero

	combined, err := combiner.Combine(site, performance, aio)
	require.NoError(t, err)
	require.Equal(t, 66, combined.CombinedScore)
}

func TestCombineEnumeratesEveryReason(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{}

	site := completedAudit(core.AuditTypeSite, "https://example.com", 90, base)
	site.Status = core.StatusFailed

	performance := completedAudit(core.AuditTypePerformance, "https://example.com", 70, base)
	performance.OverallScore = nil

	aio := completedAudit(core.AuditTypeAIO, "https://example.com", 50, base)

	_, err := combiner.Combine(site, performance, aio)
	require.Error(t, err)

	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Reasons, 2)
	require.Contains(t, invalid.Reasons[0], "status failed")
	require.Contains(t, invalid.Reasons[1], "has no score")
}

func TestCombineDomainMismatch(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{}

	site := completedAudit(core.AuditTypeSite, "https://www.example.com/", 90, base)
	performance := completedAudit(core.AuditTypePerformance, "https://EXAMPLE.com", 70, base)
	aio := completedAudit(core.AuditTypeAIO, "https://other.org", 50, base)

	_, err := combiner.Combine(site, performance, aio)
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Reasons, 1)
	require.Contains(t, invalid.Reasons[0], "different domains")
	require.Contains(t, invalid.Reasons[0], "example.com")
	require.Contains(t, invalid.Reasons[0], "other.org")
}

func TestCombineDateSpread(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{}

	t.Run("BeyondMaximumRejects", func(t *testing.T) {
		site := completedAudit(core.AuditTypeSite, "https://example.com", 90, base)
		performance := completedAudit(core.AuditTypePerformance, "https://example.com", 70, base)
		aio := completedAudit(core.AuditTypeAIO, "https://example.com", 50, base.Add(10*24*time.Hour))

		_, err := combiner.Combine(site, performance, aio)
		var invalid *ValidationError
		require.ErrorAs(t, err, &invalid)
		require.Len(t, invalid.Reasons, 1)
		require.Contains(t, invalid.Reasons[0], "7-day maximum")
	})

	t.Run("BeyondWarningThresholdWarns", func(t *testing.T) {
		site := completedAudit(core.AuditTypeSite, "https://example.com", 90, base)
		performance := completedAudit(core.AuditTypePerformance, "https://example.com", 70, base)
		aio := completedAudit(core.AuditTypeAIO, "https://example.com", 50, base.Add(4*24*time.Hour))

		combined, err := combiner.Combine(site, performance, aio)
		require.NoError(t, err)
		require.Len(t, combined.Warnings, 1)
		require.Contains(t, combined.Warnings[0], "apart")
	})

	t.Run("WithinWarningThresholdIsClean", func(t *testing.T) {
		site := completedAudit(core.AuditTypeSite, "https://example.com", 90, base)
		performance := completedAudit(core.AuditTypePerformance, "https://example.com", 70, base)
		aio := completedAudit(core.AuditTypeAIO, "https://example.com", 50, base.Add(2*24*time.Hour))

		combined, err := combiner.Combine(site, performance, aio)
		require.NoError(t, err)
		require.Empty(t, combined.Warnings)
	})
}

func TestCombineMissingAudit(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	combiner := &Combiner{}

	site, performance, _ := eligibleTriple(base)
	_, err := combiner.Combine(site, performance, nil)

	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	require.Contains(t, invalid.Reasons[0], "aio audit is missing")
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/":  "example.com",
		"http://example.com":        "example.com",
		"example.com/":              "example.com",
		"https://sub.example.com":   "sub.example.com",
		"WWW.EXAMPLE.COM":           "example.com",
		"https://example.com:8080/": "example.com:8080",
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeDomain(raw), "input %q", raw)
	}
}
