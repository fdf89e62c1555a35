// Package crawl supplies the discovery collaborator: it walks a site
// from its root URL and yields page URLs with their HTML.
package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/sitelens/sitelens/internal/config"
)

// Page is one discovered page with its raw document.
type Page struct {
	URL  string
	HTML string
}

// Discoverer walks a site and lazily produces pages. Implementations
// stop early when the context is cancelled.
type Discoverer interface {
	Discover(ctx context.Context, rootURL string, maxPages int) (<-chan Page, error)
}

// Fetcher retrieves the HTML for a single known URL, used when a resumed
// audit re-checks already-discovered pages.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// Crawler is the default Discoverer and Fetcher: breadth-first,
// same-host, robots-aware, rate-limited, with a short-lived page cache.
type Crawler struct {
	Client    *http.Client
	UserAgent string
	Respect   bool
	Logger    *zap.Logger

	limiter *rate.Limiter
	cache   *gocache.Cache

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// New builds a crawler from configuration.
func New(cfg config.CrawlConfig, logger *zap.Logger) *Crawler {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Crawler{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: cfg.UserAgent,
		Respect:   cfg.RespectRobots,
		Logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		cache:     gocache.New(ttl, 2*ttl),
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Discover walks the site breadth-first from rootURL, same host only,
// emitting up to maxPages pages. The channel closes when discovery
// finishes or the context is cancelled.
func (c *Crawler) Discover(ctx context.Context, rootURL string, maxPages int) (<-chan Page, error) {
	root, err := url.Parse(strings.TrimSpace(rootURL))
	if err != nil || root.Host == "" {
		return nil, fmt.Errorf("root URL %q is not absolute", rootURL)
	}
	if maxPages <= 0 {
		maxPages = 25
	}

	out := make(chan Page)
	go func() {
		defer close(out)

		seen := map[string]bool{}
		queue := []string{root.String()}
		emitted := 0

		for len(queue) > 0 && emitted < maxPages {
			if ctx.Err() != nil {
				return
			}

			current := queue[0]
			queue = queue[1:]

			normalized := normalizeURL(current)
			if seen[normalized] {
				continue
			}
			seen[normalized] = true

			if c.Respect && !c.allowed(ctx, current) {
				continue
			}

			body, err := c.FetchHTML(ctx, current)
			if err != nil {
				if c.Logger != nil {
					c.Logger.Debug("page fetch failed", zap.String("url", current), zap.Error(err))
				}
				continue
			}

			select {
			case out <- Page{URL: current, HTML: body}:
				emitted++
			case <-ctx.Done():
				return
			}

			for _, link := range extractLinks(root, body) {
				if !seen[normalizeURL(link)] {
					queue = append(queue, link)
				}
			}
		}
	}()
	return out, nil
}

// FetchHTML retrieves one page, consulting the cache first and holding
// to the configured request rate.
func (c *Crawler) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if cached, ok := c.cache.Get(pageURL); ok {
		if body, ok := cached.(string); ok {
			return body, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}

	text := string(body)
	c.cache.SetDefault(pageURL, text)
	return text, nil
}

// allowed consults robots.txt for the URL's host. Fetch failures allow
// the URL; politeness is best-effort.
func (c *Crawler) allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data := c.robotsData(ctx, parsed)
	if data == nil {
		return true
	}
	return data.TestAgent(parsed.Path, agentToken(c.UserAgent))
}

func (c *Crawler) robotsData(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	c.robotsMu.Lock()
	defer c.robotsMu.Unlock()

	if data, ok := c.robots[parsed.Host]; ok {
		return data
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		c.robots[parsed.Host] = nil
		return nil
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		data = nil
	}
	c.robots[parsed.Host] = data
	return data
}

// extractLinks returns absolute same-host links found in the document.
func extractLinks(root *url.URL, body string) []string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if !strings.EqualFold(a.Key, "href") {
					continue
				}
				href := strings.TrimSpace(a.Val)
				if href == "" || strings.HasPrefix(href, "#") ||
					strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
					continue
				}
				target, err := url.Parse(href)
				if err != nil {
					continue
				}
				resolved := root.ResolveReference(target)
				if resolved.Host != root.Host {
					continue
				}
				resolved.Fragment = ""
				links = append(links, resolved.String())
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}

func normalizeURL(raw string) string {
	return strings.TrimSuffix(raw, "/")
}

func agentToken(userAgent string) string {
	fields := strings.Fields(userAgent)
	if len(fields) == 0 {
		return "*"
	}
	return strings.Split(fields[0], "/")[0]
}
