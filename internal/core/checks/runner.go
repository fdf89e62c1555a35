package checks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/core"
)

// Runner executes a list of checks against one page. Failure isolation is
// the core contract here: a check that panics or misbehaves produces a
// synthetic warning result and the remaining checks still run. No result
// is ever dropped.
type Runner struct {
	Logger *zap.Logger
	Clock  func() time.Time
}

// Run invokes each check in order and returns one result per check.
func (r *Runner) Run(ctx context.Context, page *PageContext, list []Check) []core.CheckResult {
	results := make([]core.CheckResult, 0, len(list))
	for _, check := range list {
		results = append(results, r.runOne(ctx, page, check))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, page *PageContext, check Check) (result core.CheckResult) {
	def := check.Definition()

	defer func() {
		if recovered := recover(); recovered != nil {
			if r.Logger != nil {
				r.Logger.Warn("check panicked",
					zap.String("check", def.Name),
					zap.String("url", page.URL),
					zap.Any("panic", recovered))
			}
			result = core.CheckResult{
				CheckName: def.Name,
				Category:  def.Category,
				Priority:  def.Priority,
				Status:    core.CheckWarning,
				PageURL:   page.URL,
				Details: map[string]any{
					"message": fmt.Sprintf("check aborted internally: %v", recovered),
				},
				CreatedAt: r.now(),
			}
		}
	}()

	result = check.Run(ctx, page)

	// Normalize fields the check has no business varying.
	result.CheckName = def.Name
	result.Category = def.Category
	result.Priority = def.Priority
	result.PageURL = page.URL
	if result.Status == "" {
		result.Status = core.CheckWarning
		if result.Details == nil {
			result.Details = map[string]any{}
		}
		result.Details["message"] = "check returned no status"
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = r.now()
	}
	return result
}

func (r *Runner) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

// passed builds a passing result with the given details.
func passed(details map[string]any) core.CheckResult {
	return core.CheckResult{Status: core.CheckPassed, Details: details}
}

// failed builds a failing result with the given details.
func failed(details map[string]any) core.CheckResult {
	return core.CheckResult{Status: core.CheckFailed, Details: details}
}

// warning builds a warning result with the given details.
func warning(details map[string]any) core.CheckResult {
	return core.CheckResult{Status: core.CheckWarning, Details: details}
}

// transportWarning converts a best-effort network failure into a warning
// result, per the checks-never-throw contract.
func transportWarning(err error) core.CheckResult {
	return warning(map[string]any{
		"message": fmt.Sprintf("secondary request failed: %v", err),
	})
}
