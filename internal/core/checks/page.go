package checks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sitelens/sitelens/internal/core"
)

// Title and meta length bounds follow common SERP display limits.
const (
	titleMinLength = 30
	titleMaxLength = 60
	metaMinLength  = 70
	metaMaxLength  = 160
	thinContent    = 300
)

// TitleCheck verifies a page carries a single, well-sized title tag.
type TitleCheck struct {
	Types []core.AuditType
}

func (c *TitleCheck) Definition() Definition {
	return Definition{
		Name:     "page-title",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		Types:    c.Types,
	}
}

func (c *TitleCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	titles := findAll(doc, "title")
	if len(titles) == 0 {
		return failed(map[string]any{
			"message": "page has no <title> tag",
			"fix":     "add a unique, descriptive title between 30 and 60 characters",
		})
	}

	text := textContent(titles[0])
	length := len([]rune(text))
	details := map[string]any{"title": text, "length": length}

	switch {
	case text == "":
		details["message"] = "title tag is empty"
		return failed(details)
	case len(titles) > 1:
		details["message"] = fmt.Sprintf("page has %d title tags", len(titles))
		return warning(details)
	case length < titleMinLength:
		details["message"] = fmt.Sprintf("title is short (%d chars, want at least %d)", length, titleMinLength)
		return warning(details)
	case length > titleMaxLength:
		details["message"] = fmt.Sprintf("title is long (%d chars, want at most %d)", length, titleMaxLength)
		return warning(details)
	default:
		details["message"] = "title tag present and well sized"
		return passed(details)
	}
}

// MetaDescriptionCheck verifies the meta description exists and is sized
// for search snippets.
type MetaDescriptionCheck struct {
	Types []core.AuditType
}

func (c *MetaDescriptionCheck) Definition() Definition {
	return Definition{
		Name:     "meta-description",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityCritical,
		Types:    c.Types,
	}
}

func (c *MetaDescriptionCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	description := metaContent(doc, "description")
	length := len([]rune(description))
	details := map[string]any{"description": description, "length": length}

	switch {
	case description == "":
		details["message"] = "page has no meta description"
		details["fix"] = "add a meta description between 70 and 160 characters"
		return failed(details)
	case length < metaMinLength:
		details["message"] = fmt.Sprintf("meta description is short (%d chars)", length)
		return warning(details)
	case length > metaMaxLength:
		details["message"] = fmt.Sprintf("meta description is long (%d chars)", length)
		return warning(details)
	default:
		details["message"] = "meta description present and well sized"
		return passed(details)
	}
}

// HeadingStructureCheck verifies the page has exactly one h1 and a sane
// heading hierarchy.
type HeadingStructureCheck struct {
	Types []core.AuditType
}

func (c *HeadingStructureCheck) Definition() Definition {
	return Definition{
		Name:     "heading-structure",
		Category: core.CategoryContentStructure,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *HeadingStructureCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	h1s := findAll(doc, "h1")
	details := map[string]any{
		"h1_count": len(h1s),
		"h2_count": len(findAll(doc, "h2")),
		"h3_count": len(findAll(doc, "h3")),
	}
	if len(h1s) > 0 {
		details["h1"] = textContent(h1s[0])
	}

	switch {
	case len(h1s) == 0:
		details["message"] = "page has no h1 heading"
		details["fix"] = "add exactly one h1 describing the page topic"
		return failed(details)
	case len(h1s) > 1:
		details["message"] = fmt.Sprintf("page has %d h1 headings", len(h1s))
		return warning(details)
	default:
		details["message"] = "single h1 present"
		return passed(details)
	}
}

// CanonicalCheck verifies a canonical link element is present and absolute.
type CanonicalCheck struct {
	Types []core.AuditType
}

func (c *CanonicalCheck) Definition() Definition {
	return Definition{
		Name:     "canonical-link",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *CanonicalCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	var canonical string
	for _, link := range findAll(doc, "link") {
		if strings.EqualFold(attr(link, "rel"), "canonical") {
			canonical = strings.TrimSpace(attr(link, "href"))
			break
		}
	}

	details := map[string]any{"canonical": canonical}
	if canonical == "" {
		details["message"] = "page has no canonical link"
		return warning(details)
	}

	parsed, err := url.Parse(canonical)
	if err != nil || !parsed.IsAbs() {
		details["message"] = "canonical link is not an absolute URL"
		return warning(details)
	}

	details["message"] = "canonical link present"
	return passed(details)
}

// ImageAltCheck measures alt-text coverage on page images.
type ImageAltCheck struct {
	Types []core.AuditType
}

func (c *ImageAltCheck) Definition() Definition {
	return Definition{
		Name:     "image-alt-text",
		Category: core.CategoryContentStructure,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *ImageAltCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	images := findAll(doc, "img")
	withAlt := 0
	for _, img := range images {
		if strings.TrimSpace(attr(img, "alt")) != "" {
			withAlt++
		}
	}

	details := map[string]any{"images": len(images), "with_alt": withAlt}
	switch {
	case len(images) == 0:
		details["message"] = "page has no images"
		return passed(details)
	case withAlt == len(images):
		details["message"] = "all images carry alt text"
		return passed(details)
	case withAlt == 0:
		details["message"] = "no image carries alt text"
		details["fix"] = "add descriptive alt attributes to every content image"
		return failed(details)
	default:
		details["message"] = fmt.Sprintf("%d of %d images missing alt text", len(images)-withAlt, len(images))
		return warning(details)
	}
}

// HTMLLangCheck verifies the root element declares a language.
type HTMLLangCheck struct {
	Types []core.AuditType
}

func (c *HTMLLangCheck) Definition() Definition {
	return Definition{
		Name:     "html-lang",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *HTMLLangCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	lang := strings.TrimSpace(attr(findFirst(doc, "html"), "lang"))
	details := map[string]any{"lang": lang}
	if lang == "" {
		details["message"] = "html element has no lang attribute"
		return warning(details)
	}
	details["message"] = "language declared"
	return passed(details)
}

// ViewportCheck verifies the page declares a mobile viewport.
type ViewportCheck struct {
	Types []core.AuditType
}

func (c *ViewportCheck) Definition() Definition {
	return Definition{
		Name:     "viewport-meta",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *ViewportCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	viewport := metaContent(doc, "viewport")
	details := map[string]any{"viewport": viewport}
	if viewport == "" {
		details["message"] = "page has no viewport meta tag"
		details["fix"] = `add <meta name="viewport" content="width=device-width, initial-scale=1">`
		return failed(details)
	}
	details["message"] = "viewport meta present"
	return passed(details)
}

// LinkProfileCheck counts internal and external links on the page.
type LinkProfileCheck struct {
	Types []core.AuditType
}

func (c *LinkProfileCheck) Definition() Definition {
	return Definition{
		Name:     "link-profile",
		Category: core.CategoryContentStructure,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *LinkProfileCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	base := page.ParsedURL()
	internal, external := 0, 0
	for _, anchor := range findAll(doc, "a") {
		href := strings.TrimSpace(attr(anchor, "href"))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			continue
		}
		target, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			target = base.ResolveReference(target)
		}
		if base != nil && target.Host == base.Host {
			internal++
		} else {
			external++
		}
	}

	details := map[string]any{"internal": internal, "external": external}
	if internal == 0 {
		details["message"] = "page has no internal links"
		return warning(details)
	}
	details["message"] = "link profile recorded"
	return passed(details)
}

// WordCountCheck flags thin content.
type WordCountCheck struct {
	Types []core.AuditType
}

func (c *WordCountCheck) Definition() Definition {
	return Definition{
		Name:     "word-count",
		Category: core.CategoryContentQuality,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *WordCountCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	words := wordCount(doc)
	details := map[string]any{"words": words}
	if words < thinContent {
		details["message"] = fmt.Sprintf("thin content: %d words (want at least %d)", words, thinContent)
		return warning(details)
	}
	details["message"] = "content length adequate"
	return passed(details)
}

// StructuredDataCheck looks for JSON-LD structured data.
type StructuredDataCheck struct {
	Types []core.AuditType
}

func (c *StructuredDataCheck) Definition() Definition {
	return Definition{
		Name:     "structured-data",
		Category: core.CategoryTechnicalFoundation,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *StructuredDataCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	blocks := 0
	for _, script := range findAll(doc, "script") {
		if strings.EqualFold(attr(script, "type"), "application/ld+json") {
			blocks++
		}
	}

	details := map[string]any{"jsonld_blocks": blocks}
	if blocks == 0 {
		details["message"] = "page has no JSON-LD structured data"
		return warning(details)
	}
	details["message"] = "structured data present"
	return passed(details)
}
