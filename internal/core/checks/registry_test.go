package checks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens/internal/core"
)

func TestRegistryFilters(t *testing.T) {
	registry := NewRegistry(nil)

	t.Run("SiteTypeSplit", func(t *testing.T) {
		require.Len(t, registry.SiteWide(core.AuditTypeSite), 3)
		require.Len(t, registry.PageSpecific(core.AuditTypeSite), 10)
	})

	t.Run("PerformanceChecksArePerPage", func(t *testing.T) {
		require.Empty(t, registry.SiteWide(core.AuditTypePerformance))
		require.Len(t, registry.PageSpecific(core.AuditTypePerformance), 4)
	})

	t.Run("AIOChecksArePerPage", func(t *testing.T) {
		require.Empty(t, registry.SiteWide(core.AuditTypeAIO))
		require.Len(t, registry.PageSpecific(core.AuditTypeAIO), 3)
	})

	t.Run("TypeFiltersAreDisjoint", func(t *testing.T) {
		site := registry.ForType(core.AuditTypeSite)
		perf := registry.ForType(core.AuditTypePerformance)
		aio := registry.ForType(core.AuditTypeAIO)
		require.Len(t, registry.List(), len(site)+len(perf)+len(aio))
	})

	t.Run("UniqueNames", func(t *testing.T) {
		seen := map[string]bool{}
		for _, check := range registry.List() {
			name := check.Definition().Name
			require.False(t, seen[name], "duplicate check name %q", name)
			seen[name] = true
		}
	})

	t.Run("ByName", func(t *testing.T) {
		require.NotNil(t, registry.ByName("page-title"))
		require.Nil(t, registry.ByName("no-such-check"))
	})
}
