package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/sitelens/sitelens/internal/core"
)

// Site-wide checks run once per audit, against the root page. The engine
// owns that dispatch; see the state machine.

// RobotsTxtCheck fetches and parses the site's robots.txt.
type RobotsTxtCheck struct {
	Client *http.Client
	Types  []core.AuditType
}

func (c *RobotsTxtCheck) Definition() Definition {
	return Definition{
		Name:     "robots-txt",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		SiteWide: true,
		Types:    c.Types,
	}
}

func (c *RobotsTxtCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	parsed := page.ParsedURL()
	if parsed == nil {
		return warning(map[string]any{"message": "page URL did not parse"})
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	resp, err := c.get(ctx, page, robotsURL)
	if err != nil {
		return transportWarning(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	details := map[string]any{"robots_url": robotsURL, "status_code": resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound {
		details["message"] = "site has no robots.txt"
		details["fix"] = "add a robots.txt declaring crawl rules and the sitemap location"
		return failed(details)
	}
	if resp.StatusCode != http.StatusOK {
		details["message"] = fmt.Sprintf("robots.txt returned status %d", resp.StatusCode)
		return warning(details)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		details["message"] = fmt.Sprintf("robots.txt did not parse: %v", err)
		return failed(details)
	}

	if group := data.FindGroup("*"); group != nil && !group.Test("/") {
		details["message"] = "robots.txt blocks all crawlers from the site root"
		return failed(details)
	}

	details["message"] = "robots.txt present and valid"
	return passed(details)
}

func (c *RobotsTxtCheck) get(ctx context.Context, page *PageContext, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = page.Client
	}
	return client.Do(req)
}

// SitemapCheck verifies an XML sitemap is reachable.
type SitemapCheck struct {
	Client *http.Client
	Types  []core.AuditType
}

func (c *SitemapCheck) Definition() Definition {
	return Definition{
		Name:     "sitemap",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityRecommended,
		SiteWide: true,
		Types:    c.Types,
	}
}

func (c *SitemapCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	parsed := page.ParsedURL()
	if parsed == nil {
		return warning(map[string]any{"message": "page URL did not parse"})
	}

	sitemapURL := fmt.Sprintf("%s://%s/sitemap.xml", parsed.Scheme, parsed.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return transportWarning(err)
	}

	client := c.Client
	if client == nil {
		client = page.Client
	}
	resp, err := client.Do(req)
	if err != nil {
		return transportWarning(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	details := map[string]any{"sitemap_url": sitemapURL, "status_code": resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		details["message"] = fmt.Sprintf("sitemap.xml returned status %d", resp.StatusCode)
		details["fix"] = "publish an XML sitemap and reference it from robots.txt"
		return failed(details)
	}

	details["message"] = "sitemap reachable"
	return passed(details)
}

// HTTPSCheck verifies the audit target is served over HTTPS.
type HTTPSCheck struct {
	Types []core.AuditType
}

func (c *HTTPSCheck) Definition() Definition {
	return Definition{
		Name:     "https",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		SiteWide: true,
		Types:    c.Types,
	}
}

func (c *HTTPSCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	parsed, err := url.Parse(page.RootURL)
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("root URL did not parse: %v", err)})
	}

	details := map[string]any{"scheme": parsed.Scheme}
	if !strings.EqualFold(parsed.Scheme, "https") {
		details["message"] = "site is not served over HTTPS"
		details["fix"] = "serve all pages over HTTPS and redirect HTTP traffic"
		return failed(details)
	}
	details["message"] = "site served over HTTPS"
	return passed(details)
}

// newProbeClient is the shared default for checks issuing secondary calls.
func newProbeClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
