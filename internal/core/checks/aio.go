package checks

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sitelens/sitelens/internal/core"
)

// AIO checks measure how answerable and citable page content is for AI
// search surfaces.

// QuestionHeadingsCheck looks for question-form headings that map to
// answer-style content.
type QuestionHeadingsCheck struct {
	Types []core.AuditType
}

func (c *QuestionHeadingsCheck) Definition() Definition {
	return Definition{
		Name:     "question-headings",
		Category: core.CategoryContentQuality,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *QuestionHeadingsCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	total, questions := 0, 0
	for _, tag := range []string{"h2", "h3"} {
		for _, heading := range findAll(doc, tag) {
			total++
			text := strings.ToLower(textContent(heading))
			if strings.HasSuffix(text, "?") || hasQuestionLead(text) {
				questions++
			}
		}
	}

	details := map[string]any{"headings": total, "question_headings": questions}
	switch {
	case total == 0:
		details["message"] = "page has no section headings"
		return warning(details)
	case questions == 0:
		details["message"] = "no question-form headings found"
		details["fix"] = "phrase section headings as the questions readers ask"
		return warning(details)
	default:
		details["message"] = fmt.Sprintf("%d of %d headings are question-form", questions, total)
		return passed(details)
	}
}

func hasQuestionLead(text string) bool {
	for _, lead := range []string{"what ", "why ", "how ", "when ", "where ", "who ", "which ", "can ", "should ", "does ", "is "} {
		if strings.HasPrefix(text, lead) {
			return true
		}
	}
	return false
}

// AuthorBylineCheck looks for author attribution signals.
type AuthorBylineCheck struct {
	Types []core.AuditType
}

func (c *AuthorBylineCheck) Definition() Definition {
	return Definition{
		Name:     "author-byline",
		Category: core.CategoryContentQuality,
		Priority: core.PriorityRecommended,
		Types:    c.Types,
	}
}

func (c *AuthorBylineCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	author := metaContent(doc, "author")
	if author == "" {
		author = metaContent(doc, "article:author")
	}

	relAuthor := false
	for _, anchor := range findAll(doc, "a") {
		if strings.EqualFold(attr(anchor, "rel"), "author") {
			relAuthor = true
			break
		}
	}

	details := map[string]any{"meta_author": author, "rel_author": relAuthor}
	if author == "" && !relAuthor {
		details["message"] = "page carries no author attribution"
		details["fix"] = "add an author meta tag or a rel=author byline link"
		return warning(details)
	}
	details["message"] = "author attribution present"
	return passed(details)
}

// CitationLinksCheck counts outbound links to distinct external hosts,
// a proxy for source citations.
type CitationLinksCheck struct {
	Types []core.AuditType
}

func (c *CitationLinksCheck) Definition() Definition {
	return Definition{
		Name:     "citation-links",
		Category: core.CategoryContentQuality,
		Priority: core.PriorityOptional,
		Types:    c.Types,
	}
}

func (c *CitationLinksCheck) Run(ctx context.Context, page *PageContext) core.CheckResult {
	doc, err := page.Doc()
	if err != nil {
		return warning(map[string]any{"message": fmt.Sprintf("document did not parse: %v", err)})
	}

	base := page.ParsedURL()
	hosts := map[string]bool{}
	for _, anchor := range findAll(doc, "a") {
		href := strings.TrimSpace(attr(anchor, "href"))
		if href == "" {
			continue
		}
		target, err := url.Parse(href)
		if err != nil || !target.IsAbs() {
			continue
		}
		if base != nil && target.Host == base.Host {
			continue
		}
		hosts[target.Host] = true
	}

	details := map[string]any{"cited_hosts": len(hosts)}
	if len(hosts) == 0 {
		details["message"] = "page cites no external sources"
		details["fix"] = "link claims to authoritative external sources"
		return warning(details)
	}
	details["message"] = fmt.Sprintf("page links to %d external hosts", len(hosts))
	return passed(details)
}
