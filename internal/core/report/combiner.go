// Package report merges three completed audits of one domain into a
// single weighted combined score.
package report

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitelens/sitelens/internal/core"
)

// Combined score weights. They sum to 1.0.
const (
	weightSEO       = 0.5
	weightPageSpeed = 0.3
	weightAIO       = 0.2
)

// Date-spread bounds for cross-audit eligibility.
const (
	maxSpread  = 7 * 24 * time.Hour
	warnSpread = 3 * 24 * time.Hour
)

// ValidationError lists every violated eligibility invariant, not just
// the first one found.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "report validation failed: " + strings.Join(e.Reasons, "; ")
}

// Combiner decides report eligibility and computes combined scores.
type Combiner struct {
	Clock func() time.Time
}

// Combine validates the three audits and produces a report. A nil error
// with warnings means the audits are eligible but the date spread is
// wider than ideal.
func (c *Combiner) Combine(site, performance, aio *core.Audit) (*core.Report, error) {
	var reasons []string

	reasons = append(reasons, auditReasons(site, core.AuditTypeSite)...)
	reasons = append(reasons, auditReasons(performance, core.AuditTypePerformance)...)
	reasons = append(reasons, auditReasons(aio, core.AuditTypeAIO)...)

	var warnings []string
	if len(reasons) == 0 {
		reasons = append(reasons, domainReasons(site, performance, aio)...)

		spread := pairwiseSpread(site.CreatedAt, performance.CreatedAt, aio.CreatedAt)
		if spread > maxSpread {
			reasons = append(reasons, fmt.Sprintf(
				"audits created %s apart, exceeding the %d-day maximum",
				spread.Round(time.Hour), int(maxSpread.Hours()/24)))
		} else if spread > warnSpread {
			warnings = append(warnings, fmt.Sprintf(
				"audits created %s apart; results may not reflect the same site state",
				spread.Round(time.Hour)))
		}
	}

	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	seo := *site.OverallScore
	speed := *performance.OverallScore
	aioScore := *aio.OverallScore

	combined := int(math.Round(float64(seo)*weightSEO + float64(speed)*weightPageSpeed + float64(aioScore)*weightAIO))

	report := &core.Report{
		ID:                 uuid.New().String(),
		SiteAuditID:        site.ID,
		PerformanceAuditID: performance.ID,
		AIOAuditID:         aio.ID,
		CombinedScore:      combined,
		Summary:            summarize(combined, seo, speed, aioScore),
		Breakdown:          breakdown(combined, seo, speed, aioScore),
		Warnings:           warnings,
		CreatedAt:          c.now(),
	}
	return report, nil
}

// auditReasons checks the per-audit eligibility invariants: the audit
// must be completed with a non-nil score. A score of zero is valid.
func auditReasons(audit *core.Audit, want core.AuditType) []string {
	if audit == nil {
		return []string{fmt.Sprintf("%s audit is missing", want)}
	}

	var reasons []string
	if audit.Type != want {
		reasons = append(reasons, fmt.Sprintf("audit %s has type %s, want %s", audit.ID, audit.Type, want))
	}
	if audit.Status != core.StatusCompleted {
		reasons = append(reasons, fmt.Sprintf("%s audit %s has status %s, want completed", want, audit.ID, audit.Status))
	}
	if audit.OverallScore == nil {
		reasons = append(reasons, fmt.Sprintf("%s audit %s has no score", want, audit.ID))
	}
	return reasons
}

func domainReasons(audits ...*core.Audit) []string {
	domains := map[string][]string{}
	for _, audit := range audits {
		domain := NormalizeDomain(audit.URL)
		domains[domain] = append(domains[domain], string(audit.Type))
	}
	if len(domains) <= 1 {
		return nil
	}

	parts := make([]string, 0, len(domains))
	for domain, types := range domains {
		parts = append(parts, fmt.Sprintf("%s (%s)", domain, strings.Join(types, ", ")))
	}
	return []string{"audits target different domains: " + strings.Join(parts, " vs ")}
}

// NormalizeDomain lowercases the host, strips a leading www., and drops
// any trailing slash so that equivalent spellings of one domain compare
// equal.
func NormalizeDomain(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		// Bare domains without a scheme still normalize.
		parsed, err = url.Parse("https://" + trimmed)
		if err != nil {
			return strings.ToLower(strings.TrimSuffix(trimmed, "/"))
		}
	}

	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, "/")
}

func pairwiseSpread(times ...time.Time) time.Duration {
	var spread time.Duration
	for i := range times {
		for j := i + 1; j < len(times); j++ {
			delta := times[i].Sub(times[j])
			if delta < 0 {
				delta = -delta
			}
			if delta > spread {
				spread = delta
			}
		}
	}
	return spread
}

func breakdown(combined, seo, speed, aio int) []core.Contribution {
	entries := []core.Contribution{
		{Category: "seo", Score: seo, Weight: weightSEO, Points: float64(seo) * weightSEO},
		{Category: "page-speed", Score: speed, Weight: weightPageSpeed, Points: float64(speed) * weightPageSpeed},
		{Category: "aio", Score: aio, Weight: weightAIO, Points: float64(aio) * weightAIO},
	}
	for i := range entries {
		if combined > 0 {
			entries[i].Percent = math.Round(entries[i].Points/float64(combined)*1000) / 10
		}
	}
	return entries
}

func summarize(combined, seo, speed, aio int) string {
	grade := "needs significant work"
	switch {
	case combined >= 85:
		grade = "strong across all categories"
	case combined >= 70:
		grade = "solid with room to improve"
	case combined >= 50:
		grade = "underperforming in key areas"
	}
	return fmt.Sprintf("Combined score %d/100 (%s): SEO %d, page speed %d, AI optimization %d.",
		combined, grade, seo, speed, aio)
}

func (c *Combiner) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
