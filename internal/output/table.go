// Package output renders audit results for the CLI.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sitelens/sitelens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatAudit renders a finished audit with its check results.
func (f *TableFormatter) FormatAudit(audit *core.Audit, results []core.CheckResult) string {
	if audit == nil {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Check", "Category", "Priority", "Status", "Page"})

	sorted := make([]core.CheckResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PageURL != sorted[j].PageURL {
			return sorted[i].PageURL < sorted[j].PageURL
		}
		return sorted[i].CheckName < sorted[j].CheckName
	})

	for _, r := range sorted {
		t.AppendRow(table.Row{
			r.CheckName,
			string(r.Category),
			string(r.Priority),
			statusLabel(r.Status),
			shortURL(r.PageURL, audit.URL),
		})
	}

	t.AppendFooter(table.Row{"", "", "", summaryLabel(results), ""})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(f.formatScores(audit))
	return b.String()
}

// FormatReport renders a combined report breakdown.
func (f *TableFormatter) FormatReport(report *core.Report) string {
	if report == nil {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Category", "Score", "Weight", "Points", "% of Total"})
	for _, c := range report.Breakdown {
		t.AppendRow(table.Row{
			c.Category,
			c.Score,
			fmt.Sprintf("%.0f%%", c.Weight*100),
			fmt.Sprintf("%.1f", c.Points),
			fmt.Sprintf("%.1f%%", c.Percent),
		})
	}
	t.AppendFooter(table.Row{"Combined", report.CombinedScore, "", "", ""})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(report.Summary)
	b.WriteString("\n")
	for _, warning := range report.Warnings {
		b.WriteString("warning: ")
		b.WriteString(warning)
		b.WriteString("\n")
	}
	return b.String()
}

func (f *TableFormatter) formatScores(audit *core.Audit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s", audit.Status)
	if audit.TechnicalScore != nil {
		fmt.Fprintf(&b, "  technical: %d", *audit.TechnicalScore)
	}
	if audit.StrategicScore != nil {
		fmt.Fprintf(&b, "  strategic: %d", *audit.StrategicScore)
	}
	if audit.OverallScore != nil {
		fmt.Fprintf(&b, "  overall: %d", *audit.OverallScore)
	}
	if audit.ErrorMessage != "" {
		fmt.Fprintf(&b, "  error: %s", audit.ErrorMessage)
	}
	b.WriteString("\n")
	return b.String()
}

func statusLabel(status core.CheckStatus) string {
	switch status {
	case core.CheckPassed:
		return "✓ pass"
	case core.CheckFailed:
		return "✗ fail"
	default:
		return "! warn"
	}
}

func summaryLabel(results []core.CheckResult) string {
	var passed, failed, warned int
	for _, r := range results {
		switch r.Status {
		case core.CheckPassed:
			passed++
		case core.CheckFailed:
			failed++
		default:
			warned++
		}
	}
	return fmt.Sprintf("%d pass, %d fail, %d warn", passed, failed, warned)
}

// shortURL trims the audit root from page URLs so wide tables stay
// readable.
func shortURL(pageURL, rootURL string) string {
	trimmed := strings.TrimPrefix(pageURL, strings.TrimSuffix(rootURL, "/"))
	if trimmed == "" || trimmed == pageURL {
		if trimmed == "" {
			return "/"
		}
		return pageURL
	}
	return trimmed
}
