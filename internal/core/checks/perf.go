package checks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sitelens/sitelens/internal/core"
)

const (
	pageWeightWarnBytes = 1 << 20 // 1 MiB
	pageWeightFailBytes = 3 << 20 // 3 MiB
	latencyWarn         = 800 * time.Millisecond
	latencyFail         = 2 * time.Second
)

// PageWeightCheck measures the raw document size.
type PageWeightCheck struct {
	Types []core.AuditType
}

func (c *PageWeightCheck) Definition() Definition {
	return Definition{
		Name:     "page-weight",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		Types:    c.Types,
	}
}

func (c *PageWeightCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	size := len(page.HTML)
	details := map[string]any{"bytes": size}

	switch {
	case size > pageWeightFailBytes:
		details["message"] = fmt.Sprintf("document is %d bytes, over the %d byte budget", size, pageWeightFailBytes)
		details["fix"] = "reduce inline assets and markup bloat"
		return failed(details)
	case size > pageWeightWarnBytes:
		details["message"] = fmt.Sprintf("document is %d bytes, heavier than recommended", size)
		return warning(details)
	default:
		details["message"] = "document size within budget"
		return passed(details)
	}
}

// ResponseLatencyCheck issues a best-effort HEAD request and measures
// time to response.
type ResponseLatencyCheck struct {
	Client *http.Client
	Types  []core.AuditType
}

func (c *ResponseLatencyCheck) Definition() Definition {
	return Definition{
		Name:     "response-latency",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		Types:    c.Types,
	}
}

func (c *ResponseLatencyCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	resp, elapsed, err := c.head(ctx, page)
	if err != nil {
		return transportWarning(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	details := map[string]any{
		"latency_ms":  elapsed.Milliseconds(),
		"status_code": resp.StatusCode,
	}
	switch {
	case elapsed > latencyFail:
		details["message"] = fmt.Sprintf("response took %s, over the %s budget", elapsed.Round(time.Millisecond), latencyFail)
		return failed(details)
	case elapsed > latencyWarn:
		details["message"] = fmt.Sprintf("response took %s, slower than recommended", elapsed.Round(time.Millisecond))
		return warning(details)
	default:
		details["message"] = "response latency within budget"
		return passed(details)
	}
}

func (c *ResponseLatencyCheck) head(ctx context.Context, page *PageContext) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, page.URL, nil)
	if err != nil {
		return nil, 0, err
	}

	client := c.Client
	if client == nil {
		client = page.Client
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

// CompressionCheck verifies the server compresses document responses.
type CompressionCheck struct {
	Client *http.Client
	Types  []core.AuditType
}

func (c *CompressionCheck) Definition() Definition {
	return Definition{
		Name:     "compression",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *CompressionCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	resp, err := headerProbe(ctx, c.Client, page, map[string]string{"Accept-Encoding": "gzip, br"})
	if err != nil {
		return transportWarning(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	encoding := strings.TrimSpace(resp.Header.Get("Content-Encoding"))
	details := map[string]any{"content_encoding": encoding}
	if encoding == "" {
		details["message"] = "server does not compress document responses"
		details["fix"] = "enable gzip or brotli compression for text responses"
		return failed(details)
	}
	details["message"] = fmt.Sprintf("responses compressed with %s", encoding)
	return passed(details)
}

// CacheHeadersCheck verifies cacheability headers are present.
type CacheHeadersCheck struct {
	Client *http.Client
	Types  []core.AuditType
}

func (c *CacheHeadersCheck) Definition() Definition {
	return Definition{
		Name:     "cache-headers",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *CacheHeadersCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	resp, err := headerProbe(ctx, c.Client, page, nil)
	if err != nil {
		return transportWarning(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	cacheControl := resp.Header.Get("Cache-Control")
	etag := resp.Header.Get("ETag")
	details := map[string]any{"cache_control": cacheControl, "etag": etag}

	if cacheControl == "" && etag == "" {
		details["message"] = "no cache headers on document response"
		return warning(details)
	}
	details["message"] = "cache headers present"
	return passed(details)
}

func headerProbe(ctx context.Context, client *http.Client, page *PageContext, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, page.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if client == nil {
		client = page.Client
	}
	return client.Do(req)
}
