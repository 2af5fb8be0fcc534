package rules

import (
	"testing"

	"github.com/bnema/goblock/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCosmetic(t *testing.T, line string) *CosmeticFilter {
	t.Helper()
	idx := cosmeticSeparatorIndex(line)
	require.GreaterOrEqual(t, idx, 0)
	cf, err := parseCosmeticFilter(line, idx, true)
	require.NoError(t, err)
	return cf
}

func TestParseCosmeticGenericHide(t *testing.T) {
	cf := mustCosmetic(t, "##.ad-banner")
	assert.True(t, cf.IsGeneric())
	assert.True(t, cf.Mask.Has(CosmeticMaskIsSimple))
	assert.True(t, cf.Mask.Has(CosmeticMaskIsClassSelector))
	assert.Equal(t, "ad-banner", cf.Key)
}

func TestParseCosmeticSpecificHostname(t *testing.T) {
	cf := mustCosmetic(t, "example.com##.ad-banner")
	assert.False(t, cf.IsGeneric())
	require.Len(t, cf.Hostnames, 1)
	assert.Equal(t, hashutil.FastHash("example.com"), cf.Hostnames[0])
}

func TestParseCosmeticUnhide(t *testing.T) {
	cf := mustCosmetic(t, "example.com#@#.ad-banner")
	assert.True(t, cf.Mask.Has(CosmeticMaskUnhide))
}

func TestParseCosmeticDoubleNegationRejected(t *testing.T) {
	_, err := parseCosmeticFilter("~example.com#@#.ad-banner", cosmeticSeparatorIndex("~example.com#@#.ad-banner"), true)
	assert.Error(t, err)
}

func TestParseCosmeticGenericScriptInjectRejected(t *testing.T) {
	_, err := parseCosmeticFilter("##+js(abort-on-property-read, foo)", cosmeticSeparatorIndex("##+js(abort-on-property-read, foo)"), true)
	assert.Error(t, err)
}

func TestParseCosmeticScriptInjectSpecific(t *testing.T) {
	cf := mustCosmetic(t, "example.com##+js(abort-on-property-read, foo)")
	action, ok := cf.Action.(InjectScriptAction)
	require.True(t, ok)
	assert.Equal(t, "abort-on-property-read", action.Name)
	assert.Equal(t, []string{"foo"}, action.Args)
}

func TestParseCosmeticScriptInjectEscapedComma(t *testing.T) {
	cf := mustCosmetic(t, `example.com##+js(set-constant, a.b\, c)`)
	action, ok := cf.Action.(InjectScriptAction)
	require.True(t, ok)
	assert.Equal(t, "set-constant", action.Name)
	assert.Equal(t, []string{"a.b, c"}, action.Args)
}

func TestParseCosmeticProceduralHasText(t *testing.T) {
	cf := mustCosmetic(t, "example.com##div:has-text(Sponsored)")
	sel, ok := cf.Selector.(ProceduralSelector)
	require.True(t, ok)
	require.Len(t, sel.Ops, 2)
	assert.Equal(t, CSSSelectorOp{Selector: "div"}, sel.Ops[0])
	assert.Equal(t, HasTextOp{Pattern: "Sponsored"}, sel.Ops[1])
}

func TestParseCosmeticStyleAction(t *testing.T) {
	cf := mustCosmetic(t, "example.com##.ad:style(display: none)")
	action, ok := cf.Action.(StyleAction)
	require.True(t, ok)
	assert.Equal(t, "display: none", action.CSS)
}

func TestParseCosmeticGenericStyleRejected(t *testing.T) {
	_, err := parseCosmeticFilter("##.ad:style(display: none)", cosmeticSeparatorIndex("##.ad:style(display: none)"), true)
	assert.Error(t, err)
}

func TestCosmeticMatchesHashesNegation(t *testing.T) {
	cf := &CosmeticFilter{
		NotHostnames: []Hash{hashutil.FastHash("bad.com")},
	}
	SortHashes(cf.NotHostnames)
	hostHashes := DottedSuffixHashes("bad.com")
	assert.False(t, cf.MatchesHashes(hostHashes, nil))
}

func TestCosmeticMatchesHashesGeneric(t *testing.T) {
	cf := &CosmeticFilter{}
	assert.True(t, cf.MatchesHashes(DottedSuffixHashes("anything.com"), nil))
}

func TestUnescapeCSSIdentHex(t *testing.T) {
	assert.Equal(t, "ab", unescapeCSSIdent(`\61 b`))
}
