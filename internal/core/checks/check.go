package checks

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/sitelens/sitelens/internal/core"
)

// Check is a single independent rule evaluated against a page.
type Check interface {
	// Definition returns the immutable metadata for this check.
	Definition() Definition

	// Run evaluates the check against the page. Implementations must not
	// return transport failures as faults: best-effort secondary calls
	// convert their errors into warning results.
	Run(ctx context.Context, page *PageContext) core.CheckResult
}

// Definition is the immutable metadata of a check.
type Definition struct {
	Name     string
	Category core.CheckCategory
	Priority core.CheckPriority

	// SiteWide checks run once per audit, against the root page. The
	// engine owns that dispatch; checks carry no root-path guards of
	// their own.
	SiteWide bool

	// Types lists the audit types this check applies to.
	Types []core.AuditType
}

// AppliesTo reports whether the check runs for the given audit type.
func (d Definition) AppliesTo(t core.AuditType) bool {
	for _, candidate := range d.Types {
		if candidate == t {
			return true
		}
	}
	return false
}

// PageContext is the per-invocation input for a check: one audit, one
// page, the raw document.
type PageContext struct {
	URL     string
	RootURL string
	HTML    string

	// Client is used for best-effort secondary calls (robots.txt,
	// sitemap, HEAD latency probes).
	Client *http.Client

	parseOnce sync.Once
	doc       *html.Node
	parseErr  error
}

// NewPageContext builds a context for one (audit, page) pair.
func NewPageContext(rootURL, pageURL, rawHTML string, client *http.Client) *PageContext {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PageContext{
		URL:     pageURL,
		RootURL: rootURL,
		HTML:    rawHTML,
		Client:  client,
	}
}

// Doc parses the page HTML once and returns the document root.
func (p *PageContext) Doc() (*html.Node, error) {
	p.parseOnce.Do(func() {
		p.doc, p.parseErr = html.Parse(strings.NewReader(p.HTML))
	})
	return p.doc, p.parseErr
}

// ParsedURL returns the page URL parsed, or nil when it does not parse.
func (p *PageContext) ParsedURL() *url.URL {
	parsed, err := url.Parse(p.URL)
	if err != nil {
		return nil
	}
	return parsed
}
