package checks

import (
	"net/http"

	"github.com/sitelens/sitelens/internal/core"
)

// Registry is the static, ordered catalog of checks. It is built once at
// process start and never mutated afterwards.
type Registry struct {
	checks []Check
}

// NewRegistry builds the default catalog. Insertion order is preserved;
// by convention critical checks come first within each category.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = newProbeClient()
	}
	return &Registry{checks: defaultCatalog(client)}
}

// NewRegistryWith builds a registry from an explicit check list, mostly
// for tests.
func NewRegistryWith(checks ...Check) *Registry {
	return &Registry{checks: checks}
}

// List returns all checks in insertion order.
func (r *Registry) List() []Check {
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// ListCategory returns the checks in one category, in insertion order.
func (r *Registry) ListCategory(category core.CheckCategory) []Check {
	var out []Check
	for _, c := range r.checks {
		if c.Definition().Category == category {
			out = append(out, c)
		}
	}
	return out
}

// ForType returns the checks applicable to one audit type.
func (r *Registry) ForType(t core.AuditType) []Check {
	var out []Check
	for _, c := range r.checks {
		if c.Definition().AppliesTo(t) {
			out = append(out, c)
		}
	}
	return out
}

// SiteWide returns the checks that run once per audit for the given type.
func (r *Registry) SiteWide(t core.AuditType) []Check {
	var out []Check
	for _, c := range r.ForType(t) {
		if c.Definition().SiteWide {
			out = append(out, c)
		}
	}
	return out
}

// PageSpecific returns the checks that run once per crawled page for the
// given type.
func (r *Registry) PageSpecific(t core.AuditType) []Check {
	var out []Check
	for _, c := range r.ForType(t) {
		if !c.Definition().SiteWide {
			out = append(out, c)
		}
	}
	return out
}

// ByName looks a check up by its unique name.
func (r *Registry) ByName(name string) Check {
	for _, c := range r.checks {
		if c.Definition().Name == name {
			return c
		}
	}
	return nil
}

func defaultCatalog(client *http.Client) []Check {
	siteTypes := []core.AuditType{core.AuditTypeSite}
	perfTypes := []core.AuditType{core.AuditTypePerformance}
	aioTypes := []core.AuditType{core.AuditTypeAIO}

	return []Check{
		// Site-wide, critical first.
		&RobotsTxtCheck{Client: client, Types: siteTypes},
		&HTTPSCheck{Types: siteTypes},
		&SitemapCheck{Client: client, Types: siteTypes},

		// Per-page SEO checks.
		&TitleCheck{Types: siteTypes},
		&MetaDescriptionCheck{Types: siteTypes},
		&HeadingStructureCheck{Types: siteTypes},
		&CanonicalCheck{Types: siteTypes},
		&ImageAltCheck{Types: siteTypes},
		&HTMLLangCheck{Types: siteTypes},
		&ViewportCheck{Types: siteTypes},
		&LinkProfileCheck{Types: siteTypes},
		&WordCountCheck{Types: siteTypes},
		&StructuredDataCheck{Types: siteTypes},

		// Performance checks.
		&PageWeightCheck{Types: perfTypes},
		&ResponseLatencyCheck{Client: client, Types: perfTypes},
		&CompressionCheck{Client: client, Types: perfTypes},
		&CacheHeadersCheck{Client: client, Types: perfTypes},

		// AIO content checks.
		&QuestionHeadingsCheck{Types: aioTypes},
		&AuthorBylineCheck{Types: aioTypes},
		&CitationLinksCheck{Types: aioTypes},
	}
}
