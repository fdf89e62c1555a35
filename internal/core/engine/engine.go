// Package engine owns the audit lifecycle: it drives discovery,
// checking, and AI analysis through the audit state machine and is the
// only writer of audit status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/ai"
	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/checks"
	"github.com/sitelens/sitelens/internal/core/store"
	"github.com/sitelens/sitelens/internal/crawl"
)

// errHalted aborts a run when a concurrent stop (or another terminal
// transition) won the audit. It is not a failure.
var errHalted = errors.New("audit reached a terminal state")

var (
	// ErrNotResumable rejects resume on audits that are not failed.
	ErrNotResumable = errors.New("only failed audits can be resumed")

	// ErrNothingToResume rejects resume on failed audits whose discovery
	// never produced a page.
	ErrNothingToResume = errors.New("nothing to resume: no pages were crawled")
)

// Engine coordinates the audit pipeline. All fields are set at
// construction and never mutated afterwards.
type Engine struct {
	Store      *store.Store
	Discoverer crawl.Discoverer
	Fetcher    crawl.Fetcher
	Registry   *checks.Registry
	Runner     *checks.Runner
	Scorer     ai.Scorer

	MaxPages   int
	SampleSize int
	Workers    int

	Logger *zap.Logger

	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

// Options carries the collaborators for New.
type Options struct {
	Store      *store.Store
	Discoverer crawl.Discoverer
	Fetcher    crawl.Fetcher
	Registry   *checks.Registry
	Scorer     ai.Scorer
	MaxPages   int
	SampleSize int
	Workers    int
	Logger     *zap.Logger
	Clock      func() time.Time
}

// New builds an engine, filling conservative defaults for anything the
// options leave unset.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	registry := opts.Registry
	if registry == nil {
		registry = checks.NewRegistry(nil)
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 25
	}
	sample := opts.SampleSize
	if sample <= 0 {
		sample = 5
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Engine{
		Store:      opts.Store,
		Discoverer: opts.Discoverer,
		Fetcher:    opts.Fetcher,
		Registry:   registry,
		Runner:     &checks.Runner{Logger: logger, Clock: clock},
		Scorer:     opts.Scorer,
		MaxPages:   maxPages,
		SampleSize: sample,
		Workers:    workers,
		Logger:     logger,
		Clock:      clock,
	}
}

// Create validates the request and persists a pending audit. The run
// itself is started separately.
func (e *Engine) Create(ctx context.Context, auditType core.AuditType, rawURL string, orgID *string) (*core.Audit, error) {
	switch auditType {
	case core.AuditTypeSite, core.AuditTypePerformance, core.AuditTypeAIO:
	default:
		return nil, fmt.Errorf("unknown audit type %q", auditType)
	}

	normalized, err := normalizeRootURL(rawURL)
	if err != nil {
		return nil, err
	}

	audit := &core.Audit{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Type:      auditType,
		URL:       normalized,
		Status:    core.StatusPending,
		CreatedAt: e.Clock().UTC(),
	}
	if err := e.Store.InsertAudit(ctx, audit); err != nil {
		return nil, err
	}
	return audit, nil
}

// Start creates a pending audit and launches its run in the background.
func (e *Engine) Start(ctx context.Context, auditType core.AuditType, rawURL string, orgID *string) (*core.Audit, error) {
	audit, err := e.Create(ctx, auditType, rawURL, orgID)
	if err != nil {
		return nil, err
	}
	go e.runDetached(audit.ID)
	return audit, nil
}

// Execute creates an audit and runs it to its terminal state before
// returning. Used by the CLI.
func (e *Engine) Execute(ctx context.Context, auditType core.AuditType, rawURL string, orgID *string) (*core.Audit, error) {
	audit, err := e.Create(ctx, auditType, rawURL, orgID)
	if err != nil {
		return nil, err
	}
	if err := e.Run(ctx, audit.ID); err != nil {
		return nil, err
	}
	return e.Store.GetAudit(ctx, audit.ID)
}

// Stop requests a halt. Stopping an audit already in a terminal state is
// a no-op; the call reports the state the audit ended up in either way.
func (e *Engine) Stop(ctx context.Context, auditID string) (*core.Audit, error) {
	for {
		audit, err := e.Store.GetAudit(ctx, auditID)
		if err != nil {
			return nil, err
		}
		if audit.Status.Terminal() {
			return audit, nil
		}

		now := e.Clock().UTC()
		audit.Status = core.StatusStopped
		audit.CompletedAt = &now
		audit.CurrentURL = ""
		err = e.Store.UpdateAudit(ctx, audit)
		if err == nil {
			e.Logger.Info("audit stopped", zap.String("audit_id", auditID))
			return audit, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
}

// Resume restarts a failed audit from its persisted pages. It refuses
// audits in any other state and failed audits that never crawled a page,
// then continues in the background.
func (e *Engine) Resume(ctx context.Context, auditID string) (*core.Audit, error) {
	audit, err := e.Store.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if audit.Status != core.StatusFailed {
		return nil, fmt.Errorf("audit %s is %s: %w", auditID, audit.Status, ErrNotResumable)
	}
	if audit.PagesCrawled == 0 {
		return nil, fmt.Errorf("audit %s: %w", auditID, ErrNothingToResume)
	}

	audit.Status = core.StatusChecking
	audit.ErrorMessage = ""
	audit.CompletedAt = nil
	if err := e.Store.UpdateAudit(ctx, audit); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("audit %s changed state concurrently; re-read and retry", auditID)
		}
		return nil, err
	}

	go func() {
		if err := e.resume(context.Background(), audit.ID); err != nil && !errors.Is(err, errHalted) {
			e.Logger.Error("resume failed", zap.String("audit_id", audit.ID), zap.Error(err))
		}
	}()
	return audit, nil
}

// Progress returns the polling projection: status, counters, and the
// most recent check results.
func (e *Engine) Progress(ctx context.Context, auditID string) (*core.Progress, error) {
	audit, err := e.Store.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}

	recent, err := e.Store.RecentCheckResults(ctx, auditID, 20)
	if err != nil {
		return nil, err
	}

	return &core.Progress{
		AuditID:      audit.ID,
		Status:       audit.Status,
		PagesCrawled: audit.PagesCrawled,
		PagesTotal:   audit.PagesFound,
		CurrentURL:   audit.CurrentURL,
		Checks:       recent,
		ErrorMessage: audit.ErrorMessage,
	}, nil
}

func (e *Engine) runDetached(auditID string) {
	if err := e.Run(context.Background(), auditID); err != nil && !errors.Is(err, errHalted) {
		e.Logger.Error("audit run failed", zap.String("audit_id", auditID), zap.Error(err))
	}
}

// advance transitions the audit by re-reading it, applying mutate, and
// writing under the version guard. A terminal state observed on re-read
// aborts with errHalted; the counters bump the version concurrently, so
// conflicts here are routine.
func (e *Engine) advance(ctx context.Context, auditID string, mutate func(*core.Audit)) (*core.Audit, error) {
	for {
		audit, err := e.Store.GetAudit(ctx, auditID)
		if err != nil {
			return nil, err
		}
		if audit.Status.Terminal() {
			return nil, errHalted
		}

		mutate(audit)
		err = e.Store.UpdateAudit(ctx, audit)
		if err == nil {
			return audit, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
}

// halted reports whether a concurrent writer moved the audit to a
// terminal state, which the pipeline observes between units of work.
func (e *Engine) halted(ctx context.Context, auditID string) bool {
	audit, err := e.Store.GetAudit(ctx, auditID)
	if err != nil {
		return false
	}
	return audit.Status.Terminal()
}

// fail records the error and moves the audit to failed, keeping the
// crawl progress so the audit can be resumed.
func (e *Engine) fail(ctx context.Context, auditID string, cause error) {
	_, err := e.advance(ctx, auditID, func(audit *core.Audit) {
		now := e.Clock().UTC()
		audit.Status = core.StatusFailed
		audit.ErrorMessage = cause.Error()
		audit.CompletedAt = &now
		audit.CurrentURL = ""
	})
	if err != nil && !errors.Is(err, errHalted) {
		e.Logger.Error("failed to record audit failure",
			zap.String("audit_id", auditID), zap.NamedError("cause", cause), zap.Error(err))
	}
}

// normalizeRootURL validates the audit target and defaults the scheme
// to https when the caller omitted one.
func normalizeRootURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errors.New("url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("url %q is not a valid absolute URL", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("url scheme %q is not supported", parsed.Scheme)
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	return strings.TrimSuffix(parsed.String(), "/"), nil
}
