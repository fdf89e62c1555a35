// Package score reduces raw check results and AI analyses into the
// numeric scores persisted on completed audits.
package score

import (
	"math"

	"github.com/sitelens/sitelens/internal/core"
)

// Per-dimension weights for the strategic score. They sum to 1.0.
const (
	weightDataQuality       = 0.25
	weightExpertCredibility = 0.20
	weightComprehensiveness = 0.20
	weightCitability        = 0.25
	weightAuthority         = 0.10
)

// Blend weights for the AIO overall score.
const (
	weightTechnical = 0.40
	weightStrategic = 0.60
)

// Technical converts check results into a 0-100 score: failed counts 0,
// warning 0.5, passed 1, averaged across all checks.
func Technical(results []core.CheckResult) int {
	if len(results) == 0 {
		return 0
	}

	var sum float64
	for _, result := range results {
		switch result.Status {
		case core.CheckPassed:
			sum += 1
		case core.CheckWarning:
			sum += 0.5
		}
	}
	return int(math.Round(sum / float64(len(results)) * 100))
}

// Strategic computes the weighted dimension average across AI analyses.
// With no analyses it returns 0, not nil: downstream report eligibility
// treats score zero as a valid completed score.
func Strategic(analyses []core.AIAnalysis) int {
	if len(analyses) == 0 {
		return 0
	}

	var sum float64
	for _, analysis := range analyses {
		sum += weighted(analysis.Scores)
	}
	return int(math.Round(sum / float64(len(analyses))))
}

// PageStrategic computes the weighted blend for a single analysis.
func PageStrategic(scores core.DimensionScores) int {
	return int(math.Round(weighted(scores)))
}

func weighted(scores core.DimensionScores) float64 {
	return float64(scores.DataQuality)*weightDataQuality +
		float64(scores.ExpertCredibility)*weightExpertCredibility +
		float64(scores.Comprehensiveness)*weightComprehensiveness +
		float64(scores.Citability)*weightCitability +
		float64(scores.Authority)*weightAuthority
}

// Overall blends technical and strategic for AIO audits; site and
// performance audits have no strategic dimension and score as technical.
func Overall(auditType core.AuditType, technical, strategic int) int {
	if auditType != core.AuditTypeAIO {
		return technical
	}
	return int(math.Round(float64(technical)*weightTechnical + float64(strategic)*weightStrategic))
}
