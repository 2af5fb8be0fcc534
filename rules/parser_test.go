package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterBlankAndComment(t *testing.T) {
	r, err := ParseFilter("   ", false, ParseOptions{})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseFilter("# just a comment", false, ParseOptions{})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestParseFilterMetadata(t *testing.T) {
	r, err := ParseFilter("! Title: My List", false, ParseOptions{})
	require.NoError(t, err)
	md, ok := r.(*ListMetadata)
	require.True(t, ok)
	assert.Equal(t, "My List", md.Title)
}

func TestParseExpiresBounds(t *testing.T) {
	assert.Equal(t, 4, parseExpires("4 hours"))
	assert.Equal(t, 48, parseExpires("2 days"))
	assert.Equal(t, 0, parseExpires("0 hours"))
	assert.Equal(t, 0, parseExpires("30 days"))
	assert.Equal(t, 0, parseExpires("nonsense"))
}

func TestParseFilterDispatchesCosmeticVsNetwork(t *testing.T) {
	r, err := ParseFilter("example.com##.ad", false, ParseOptions{})
	require.NoError(t, err)
	_, ok := r.(*CosmeticFilter)
	assert.True(t, ok)

	r, err = ParseFilter("||example.com^", false, ParseOptions{})
	require.NoError(t, err)
	_, ok = r.(*NetworkFilter)
	assert.True(t, ok)
}

func TestParseHostsLineEquivalence(t *testing.T) {
	nf, ok, err := parseHostsLine("0.0.0.0 ads.example.com", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ads.example.com", nf.Hostname)
	assert.True(t, nf.Mask.AllowsType(TypeDocument))
	assert.False(t, nf.Mask.AllowsType(TypeScript))
}

func TestParseHostsLineRejectsLocalhost(t *testing.T) {
	_, ok, err := parseHostsLine("127.0.0.1 localhost", true)
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestParseHostsLineIgnoresNonLoopback(t *testing.T) {
	_, ok, err := parseHostsLine("10.0.0.5 internal.lan", true)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestApplyNetworkOptionsUnrecognised(t *testing.T) {
	_, err := parseNetworkFilter("||x.com^$totally-bogus", true, ParseOptions{})
	assert.Error(t, err)
}

func TestApplyNetworkOptionsOtherPopupEmptyAccepted(t *testing.T) {
	for _, opt := range []string{"other", "popup", "empty"} {
		_, err := parseNetworkFilter("||x.com^$"+opt, true, ParseOptions{})
		assert.NoError(t, err, opt)
	}
}

func TestFilterSetCollectsErrorsWithoutAborting(t *testing.T) {
	fs := NewFilterSet()
	fs.AddLines([]string{
		"||good.com^",
		"@@||bad.com^$important",
		"||another-good.com^",
	}, false, ParseOptions{})
	assert.Len(t, fs.Network, 2)
	assert.Len(t, fs.Errors, 1)
}

func TestSplitOptionsSplitsOnCommas(t *testing.T) {
	got := splitOptions("domain=a.com|b.com,csp=script-src 'none'")
	assert.Equal(t, []string{"domain=a.com|b.com", "csp=script-src 'none'"}, got)
}

func TestPunycodeHostASCIIPassthrough(t *testing.T) {
	h, err := punycodeHost("Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "example.com", h)
}
