package cosmetic

import (
	"testing"

	"github.com/bnema/goblock/resources"
	"github.com/bnema/goblock/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCosmeticSet(t *testing.T, lines []string) *rules.FilterSet {
	t.Helper()
	set := rules.NewFilterSet()
	set.AddLines(lines, true, rules.ParseOptions{})
	require.Empty(t, set.Errors)
	return set
}

// Scenario 5: a generic hide rule is suppressed by generichide while a
// hostname-specific hide rule for the same page survives.
func TestScenario5GenericHideSuppression(t *testing.T) {
	set := buildCosmeticSet(t, []string{"##.donotblock", "example.com##.block"})
	c := NewCache(resources.NewStorage(), rules.PermissionAll, nil)
	c.AddFilters(set.Cosmetic)

	res := c.HostnameCosmeticResources("example.com", true)
	assert.Equal(t, []string{".block"}, res.HideSelectors)
	assert.True(t, res.Generichide)

	resNoExempt := c.HostnameCosmeticResources("example.com", false)
	assert.Contains(t, resNoExempt.HideSelectors, ".block")
	found := false
	for _, sel := range resNoExempt.HideSelectors {
		if sel == ".donotblock{display:none !important;}" {
			found = true
		}
	}
	assert.True(t, found, "expected base stylesheet selector in non-generichide result, got %v", resNoExempt.HideSelectors)
}

// Scenario 6: a scriptlet injection resolves through resource storage and
// is wrapped in a try/catch.
func TestScenario6ScriptletInjection(t *testing.T) {
	set := buildCosmeticSet(t, []string{"toolforge.org##+js(abort-on-property-read, noAdBlockers)"})
	store := resources.NewStorage()
	require.NoError(t, store.AddResource(&rules.Resource{
		Name:    "abort-on-property-read.js",
		Aliases: []string{"abort-on-property-read"},
		Kind:    rules.TemplateKind{},
		Content: "YWJvcnQoe3sxfX0p", // base64("abort({{1}})")
	}))
	c := NewCache(store, rules.PermissionAll, nil)
	c.AddFilters(set.Cosmetic)

	res := c.HostnameCosmeticResources("toolforge.org", false)
	require.NotEmpty(t, res.InjectedScript)
	assert.Contains(t, res.InjectedScript, "noAdBlockers")
	assert.Contains(t, res.InjectedScript, "try {")
	assert.Contains(t, res.InjectedScript, "} catch ( e ) { }")
}

func TestHiddenClassIDSelectors(t *testing.T) {
	set := buildCosmeticSet(t, []string{"##.ad-banner", "##div.sponsored", "##span#ad-unit"})
	c := NewCache(resources.NewStorage(), rules.PermissionAll, nil)
	c.AddFilters(set.Cosmetic)

	sels := c.HiddenClassIDSelectors([]string{"ad-banner", "sponsored"}, []string{"ad-unit"}, nil)
	assert.Contains(t, sels, ".ad-banner")
	assert.Contains(t, sels, "div.sponsored")
	assert.Contains(t, sels, "span#ad-unit")

	excluded := c.HiddenClassIDSelectors([]string{"ad-banner"}, nil, []string{".ad-banner"})
	assert.Empty(t, excluded)
}

func TestExceptionSubtractsMatchingHide(t *testing.T) {
	set := buildCosmeticSet(t, []string{"example.com##.block", "example.com#@#.block"})
	c := NewCache(resources.NewStorage(), rules.PermissionAll, nil)
	c.AddFilters(set.Cosmetic)

	res := c.HostnameCosmeticResources("example.com", true)
	assert.Empty(t, res.HideSelectors)
}

func TestScriptletPermissionCeilingBlocksInjection(t *testing.T) {
	set := buildCosmeticSet(t, []string{"toolforge.org##+js(guarded)"})
	store := resources.NewStorage()
	require.NoError(t, store.AddResource(&rules.Resource{
		Name:       "guarded.js",
		Aliases:    []string{"guarded"},
		Kind:       rules.TemplateKind{},
		Content:    "Z3VhcmRlZCgp",
		Permission: rules.PermissionNetwork,
	}))
	c := NewCache(store, rules.PermissionNone, nil)
	c.AddFilters(set.Cosmetic)

	res := c.HostnameCosmeticResources("toolforge.org", false)
	assert.Empty(t, res.InjectedScript)
}
