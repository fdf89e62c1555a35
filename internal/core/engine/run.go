package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/ai"
	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/checks"
	"github.com/sitelens/sitelens/internal/core/score"
	"github.com/sitelens/sitelens/internal/worker"
)

// pageDoc pairs a persisted page with its fetched document for the
// duration of one run.
type pageDoc struct {
	page core.Page
	html string
}

// Run drives a pending audit to a terminal state. It is the exclusive
// writer for the audit while it runs; a concurrent stop is honored at
// the next page or phase boundary.
func (e *Engine) Run(ctx context.Context, auditID string) error {
	audit, err := e.Store.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status != core.StatusPending {
		return fmt.Errorf("audit %s is %s; runs start from pending", auditID, audit.Status)
	}

	audit, err = e.advance(ctx, auditID, func(a *core.Audit) {
		now := e.Clock().UTC()
		a.Status = core.StatusCrawling
		a.StartedAt = &now
	})
	if err != nil {
		return err
	}

	e.Logger.Info("audit started",
		zap.String("audit_id", auditID),
		zap.String("type", string(audit.Type)),
		zap.String("url", audit.URL))

	docs, err := e.discover(ctx, audit)
	if err := e.phase(ctx, auditID, err); err != nil {
		return err
	}

	_, err = e.advance(ctx, auditID, func(a *core.Audit) {
		a.Status = core.StatusChecking
		a.PagesFound = len(docs)
	})
	if err := e.phase(ctx, auditID, err); err != nil {
		return err
	}

	if err := e.phase(ctx, auditID, e.runChecks(ctx, audit, docs)); err != nil {
		return err
	}

	if audit.Type == core.AuditTypeAIO {
		sample := docs
		if len(sample) > e.SampleSize {
			sample = sample[:e.SampleSize]
		}
		inputs := make([]ai.PageInput, 0, len(sample))
		for _, doc := range sample {
			inputs = append(inputs, ai.PageInput{URL: doc.page.URL, HTML: doc.html})
		}
		if err := e.phase(ctx, auditID, e.analyze(ctx, auditID, inputs)); err != nil {
			return err
		}
	}

	return e.phase(ctx, auditID, e.complete(ctx, auditID))
}

// phase funnels a phase error into the failed state. errHalted passes
// through untouched: a stop is not a failure.
func (e *Engine) phase(ctx context.Context, auditID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errHalted) {
		return errHalted
	}
	e.fail(ctx, auditID, err)
	return err
}

// discover pulls pages from the discovery collaborator, persisting each
// one and bumping the crawl counter as it lands.
func (e *Engine) discover(ctx context.Context, audit *core.Audit) ([]pageDoc, error) {
	// Cancelling unblocks the producer when the loop exits early.
	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pages, err := e.Discoverer.Discover(crawlCtx, audit.URL, e.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	var docs []pageDoc
	for discovered := range pages {
		if e.halted(ctx, audit.ID) {
			return nil, errHalted
		}

		page := core.Page{ID: uuid.NewString(), AuditID: audit.ID, URL: discovered.URL}
		if err := e.Store.InsertPages(ctx, []core.Page{page}); err != nil {
			return nil, err
		}
		if err := e.Store.IncrementPagesCrawled(ctx, audit.ID, page.URL); err != nil {
			return nil, err
		}
		docs = append(docs, pageDoc{page: page, html: discovered.HTML})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("discovery found no pages at %s", audit.URL)
	}
	return docs, nil
}

// runChecks evaluates the site-wide checks once against the root page,
// then dispatches the per-page checks onto the worker pool.
func (e *Engine) runChecks(ctx context.Context, audit *core.Audit, docs []pageDoc) error {
	root := rootDoc(audit.URL, docs)
	siteChecks := e.Registry.SiteWide(audit.Type)
	if len(siteChecks) > 0 && root != nil {
		pageCtx := checks.NewPageContext(audit.URL, root.page.URL, root.html, nil)
		results := e.Runner.Run(ctx, pageCtx, siteChecks)
		if err := e.Store.InsertCheckResults(ctx, audit.ID, root.page.ID, results); err != nil {
			return err
		}
	}
	return e.checkPages(ctx, audit, docs)
}

// checkPages runs the per-page checks concurrently. Each page persists
// its results before it marks itself checked and before the counter
// moves, so pollers never see a count ahead of queryable results.
func (e *Engine) checkPages(ctx context.Context, audit *core.Audit, docs []pageDoc) error {
	pageChecks := e.Registry.PageSpecific(audit.Type)
	if len(pageChecks) == 0 || len(docs) == 0 {
		return nil
	}

	var stopped atomic.Bool
	pool := worker.NewPool(ctx, e.Workers)
	for _, doc := range docs {
		doc := doc
		pool.Submit(func(taskCtx context.Context) error {
			if stopped.Load() {
				return nil
			}
			if e.halted(taskCtx, audit.ID) {
				stopped.Store(true)
				return nil
			}

			pageCtx := checks.NewPageContext(audit.URL, doc.page.URL, doc.html, nil)
			results := e.Runner.Run(taskCtx, pageCtx, pageChecks)
			if err := e.Store.InsertCheckResults(taskCtx, audit.ID, doc.page.ID, results); err != nil {
				return err
			}
			if err := e.Store.MarkPageChecked(taskCtx, audit.ID, doc.page.ID); err != nil {
				return err
			}
			return e.Store.IncrementPagesAnalyzed(taskCtx, audit.ID, doc.page.URL)
		})
	}

	if errs := pool.Wait(); len(errs) > 0 {
		return errs[0]
	}
	if stopped.Load() {
		return errHalted
	}
	return nil
}

// analyze calls the AI scorer for the sampled pages and persists the
// analyses. Token usage accrued before a failure is still recorded.
func (e *Engine) analyze(ctx context.Context, auditID string, samples []ai.PageInput) error {
	if e.Scorer == nil || len(samples) == 0 {
		return nil
	}
	if e.halted(ctx, auditID) {
		return errHalted
	}

	result, err := e.Scorer.Analyze(ctx, samples)
	if result != nil && (result.InputTokens > 0 || result.OutputTokens > 0) {
		if usageErr := e.Store.AddTokenUsage(ctx, auditID, result.InputTokens, result.OutputTokens, result.Cost); usageErr != nil {
			e.Logger.Warn("token usage not recorded", zap.String("audit_id", auditID), zap.Error(usageErr))
		}
	}
	if err != nil {
		return fmt.Errorf("ai analysis: %w", err)
	}

	now := e.Clock().UTC()
	for i := range result.Analyses {
		result.Analyses[i].ID = uuid.NewString()
		result.Analyses[i].AuditID = auditID
		result.Analyses[i].CreatedAt = now
	}
	return e.Store.InsertAnalyses(ctx, result.Analyses)
}

// complete computes the final scores exactly once and moves the audit
// to completed. Score fields are immutable afterwards.
func (e *Engine) complete(ctx context.Context, auditID string) error {
	results, err := e.Store.ListCheckResults(ctx, auditID)
	if err != nil {
		return err
	}
	technical := score.Technical(results)

	analyses, err := e.Store.ListAnalyses(ctx, auditID)
	if err != nil {
		return err
	}
	strategic := score.Strategic(analyses)

	updated, err := e.advance(ctx, auditID, func(a *core.Audit) {
		now := e.Clock().UTC()
		t := technical
		a.TechnicalScore = &t
		if a.Type == core.AuditTypeAIO {
			s := strategic
			a.StrategicScore = &s
		}
		overall := score.Overall(a.Type, technical, strategic)
		a.OverallScore = &overall
		a.Status = core.StatusCompleted
		a.CompletedAt = &now
		a.CurrentURL = ""
	})
	if err == nil && updated.OverallScore != nil {
		e.Logger.Info("audit completed",
			zap.String("audit_id", auditID),
			zap.Int("overall_score", *updated.OverallScore))
	}
	return err
}

// resume re-enters checking on the persisted page set. Discovery is
// never re-invoked; pages already checked keep their results.
func (e *Engine) resume(ctx context.Context, auditID string) error {
	audit, err := e.Store.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}

	pages, err := e.Store.ListPages(ctx, auditID)
	if err := e.phase(ctx, auditID, err); err != nil {
		return err
	}
	if len(pages) == 0 {
		return e.phase(ctx, auditID, fmt.Errorf("audit %s has no persisted pages", auditID))
	}

	existing, err := e.Store.ListCheckResults(ctx, auditID)
	if err := e.phase(ctx, auditID, err); err != nil {
		return err
	}

	var pending []pageDoc
	for _, page := range pages {
		if page.Checked {
			continue
		}
		if e.halted(ctx, auditID) {
			return errHalted
		}
		html, err := e.Fetcher.FetchHTML(ctx, page.URL)
		if err != nil {
			return e.phase(ctx, auditID, fmt.Errorf("refetch %s: %w", page.URL, err))
		}
		pending = append(pending, pageDoc{page: page, html: html})
	}

	// Site-wide checks may not have landed before the failure.
	if !hasSiteWideResults(existing, e.Registry.SiteWide(audit.Type)) {
		if err := e.phase(ctx, auditID, e.resumeSiteChecks(ctx, audit, pages, pending)); err != nil {
			return err
		}
	}

	if err := e.phase(ctx, auditID, e.checkPages(ctx, audit, pending)); err != nil {
		return err
	}

	if audit.Type == core.AuditTypeAIO {
		samples, err := e.resumeSamples(ctx, audit, pages, pending)
		if err := e.phase(ctx, auditID, err); err != nil {
			return err
		}
		if err := e.phase(ctx, auditID, e.analyze(ctx, auditID, samples)); err != nil {
			return err
		}
	}

	return e.phase(ctx, auditID, e.complete(ctx, auditID))
}

// resumeSiteChecks reruns the site-wide batch against the root page,
// refetching its document when the resume set does not already hold it.
func (e *Engine) resumeSiteChecks(ctx context.Context, audit *core.Audit, pages []core.Page, pending []pageDoc) error {
	siteChecks := e.Registry.SiteWide(audit.Type)
	if len(siteChecks) == 0 {
		return nil
	}

	rootPage := rootPage(audit.URL, pages)
	var rootHTML string
	for _, doc := range pending {
		if doc.page.ID == rootPage.ID {
			rootHTML = doc.html
			break
		}
	}
	if rootHTML == "" {
		html, err := e.Fetcher.FetchHTML(ctx, rootPage.URL)
		if err != nil {
			return fmt.Errorf("refetch %s: %w", rootPage.URL, err)
		}
		rootHTML = html
	}

	pageCtx := checks.NewPageContext(audit.URL, rootPage.URL, rootHTML, nil)
	results := e.Runner.Run(ctx, pageCtx, siteChecks)
	return e.Store.InsertCheckResults(ctx, audit.ID, rootPage.ID, results)
}

// resumeSamples rebuilds the AI sample for a resumed aio audit, keeping
// pages that were already analyzed out of the batch.
func (e *Engine) resumeSamples(ctx context.Context, audit *core.Audit, pages []core.Page, pending []pageDoc) ([]ai.PageInput, error) {
	analyses, err := e.Store.ListAnalyses(ctx, audit.ID)
	if err != nil {
		return nil, err
	}
	analyzed := make(map[string]bool, len(analyses))
	for _, analysis := range analyses {
		analyzed[analysis.PageURL] = true
	}

	fetched := make(map[string]string, len(pending))
	for _, doc := range pending {
		fetched[doc.page.URL] = doc.html
	}

	sample := pages
	if len(sample) > e.SampleSize {
		sample = sample[:e.SampleSize]
	}

	var inputs []ai.PageInput
	for _, page := range sample {
		if analyzed[page.URL] {
			continue
		}
		html, ok := fetched[page.URL]
		if !ok {
			html, err = e.Fetcher.FetchHTML(ctx, page.URL)
			if err != nil {
				return nil, fmt.Errorf("refetch %s: %w", page.URL, err)
			}
		}
		inputs = append(inputs, ai.PageInput{URL: page.URL, HTML: html})
	}
	return inputs, nil
}

func rootDoc(rootURL string, docs []pageDoc) *pageDoc {
	for i := range docs {
		if sameURL(docs[i].page.URL, rootURL) {
			return &docs[i]
		}
	}
	if len(docs) > 0 {
		return &docs[0]
	}
	return nil
}

func rootPage(rootURL string, pages []core.Page) core.Page {
	for _, page := range pages {
		if sameURL(page.URL, rootURL) {
			return page
		}
	}
	return pages[0]
}

func sameURL(a, b string) bool {
	trim := func(s string) string {
		for len(s) > 0 && s[len(s)-1] == '/' {
			s = s[:len(s)-1]
		}
		return s
	}
	return trim(a) == trim(b)
}

func hasSiteWideResults(results []core.CheckResult, siteChecks []checks.Check) bool {
	names := make(map[string]bool, len(siteChecks))
	for _, check := range siteChecks {
		names[check.Definition().Name] = true
	}
	for _, result := range results {
		if names[result.CheckName] {
			return true
		}
	}
	return false
}
