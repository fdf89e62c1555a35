package core

import "time"

// AuditType identifies which kind of audit a run performs.
type AuditType string

const (
	AuditTypeSite        AuditType = "site"
	AuditTypePerformance AuditType = "performance"
	AuditTypeAIO         AuditType = "aio"
)

// AuditStatus is the state-machine state of an audit run.
type AuditStatus string

const (
	StatusPending   AuditStatus = "pending"
	StatusCrawling  AuditStatus = "crawling"
	StatusRunning   AuditStatus = "running"
	StatusChecking  AuditStatus = "checking"
	StatusCompleted AuditStatus = "completed"
	StatusFailed    AuditStatus = "failed"
	StatusStopped   AuditStatus = "stopped"
)

// Terminal reports whether the status is a terminal state.
func (s AuditStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// CheckStatus is the outcome of a single check invocation.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
)

// CheckCategory groups checks for scoring and presentation.
type CheckCategory string

const (
	CategoryTechnicalFoundation CheckCategory = "technical-foundation"
	CategoryContentStructure    CheckCategory = "content-structure"
	CategoryContentQuality      CheckCategory = "content-quality"
)

// CheckPriority ranks how urgently a failing check should be addressed.
type CheckPriority string

const (
	PriorityCritical    CheckPriority = "critical"
	PriorityRecommended CheckPriority = "recommended"
	PriorityOptional    CheckPriority = "optional"
)

// CheckResult is the immutable record produced by one check invocation.
type CheckResult struct {
	CheckName string         `json:"check_name"`
	Category  CheckCategory  `json:"category"`
	Priority  CheckPriority  `json:"priority"`
	Status    CheckStatus    `json:"status"`
	PageURL   string         `json:"page_url"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Audit is the mutable aggregate owned by the state machine.
// Score fields stay nil until the audit reaches completed.
type Audit struct {
	ID             string      `json:"id"`
	OrgID          *string     `json:"org_id,omitempty"`
	Type           AuditType   `json:"type"`
	URL            string      `json:"url"`
	Status         AuditStatus `json:"status"`
	PagesFound     int         `json:"pages_found"`
	PagesCrawled   int         `json:"pages_crawled"`
	PagesAnalyzed  int         `json:"pages_analyzed"`
	CurrentURL     string      `json:"current_url,omitempty"`
	TechnicalScore *int        `json:"technical_score,omitempty"`
	StrategicScore *int        `json:"strategic_score,omitempty"`
	OverallScore   *int        `json:"overall_score,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	AIInputTokens  int         `json:"ai_input_tokens,omitempty"`
	AIOutputTokens int         `json:"ai_output_tokens,omitempty"`
	AICost         float64     `json:"ai_cost,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`

	// Version guards concurrent writers: updates carry the version they
	// read and fail when another writer got there first.
	Version int64 `json:"-"`
}

// Page is one discovered page of an audit.
type Page struct {
	ID      string `json:"id"`
	AuditID string `json:"audit_id"`
	URL     string `json:"url"`
	Checked bool   `json:"checked"`
}

// DimensionScores holds the five AI-judged content-quality dimensions,
// each on a 0-100 scale.
type DimensionScores struct {
	DataQuality       int `json:"data_quality"`
	ExpertCredibility int `json:"expert_credibility"`
	Comprehensiveness int `json:"comprehensiveness"`
	Citability        int `json:"citability"`
	Authority         int `json:"authority"`
}

// Recommendation is one prioritized improvement suggested by AI analysis.
type Recommendation struct {
	Priority       CheckPriority `json:"priority"`
	Category       string        `json:"category"`
	Issue          string        `json:"issue"`
	Recommendation string        `json:"recommendation"`
	Impact         string        `json:"impact,omitempty"`
	URL            string        `json:"url,omitempty"`
}

// AIAnalysis is the immutable per-page output of the AI batch scorer.
type AIAnalysis struct {
	ID              string           `json:"id"`
	AuditID         string           `json:"audit_id"`
	PageURL         string           `json:"page_url"`
	Scores          DimensionScores  `json:"scores"`
	OverallScore    int              `json:"overall_score"`
	Findings        map[string]any   `json:"findings,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Contribution is one category's share of a combined report score.
type Contribution struct {
	Category string  `json:"category"`
	Score    int     `json:"score"`
	Weight   float64 `json:"weight"`
	Points   float64 `json:"points"`
	Percent  float64 `json:"percent"`
}

// Report merges one completed site, performance, and aio audit.
type Report struct {
	ID                 string         `json:"id"`
	SiteAuditID        string         `json:"site_audit_id"`
	PerformanceAuditID string         `json:"performance_audit_id"`
	AIOAuditID         string         `json:"aio_audit_id"`
	CombinedScore      int            `json:"combined_score"`
	Summary            string         `json:"summary"`
	Breakdown          []Contribution `json:"breakdown"`
	Warnings           []string       `json:"warnings,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Progress is the read-only projection polled by clients while an audit
// is in flight.
type Progress struct {
	AuditID      string        `json:"audit_id"`
	Status       AuditStatus   `json:"status"`
	PagesCrawled int           `json:"pages_crawled"`
	PagesTotal   int           `json:"pages_total"`
	CurrentURL   string        `json:"current_url,omitempty"`
	Checks       []CheckResult `json:"checks,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
