package resources

import (
	"testing"
	"time"

	"github.com/bnema/goblock/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddResourceDuplicateRejected(t *testing.T) {
	s := NewStorage()
	r := &rules.Resource{Name: "noop.js", Kind: rules.MimeKind{Type: rules.MimeApplicationJavascript}, Content: "dHJ1ZQ=="}
	require.NoError(t, s.AddResource(r))
	err := s.AddResource(r)
	assert.ErrorIs(t, err, ErrDuplicateResource)
}

func TestLookupByAliasAndJSSuffix(t *testing.T) {
	s := NewStorage()
	r := &rules.Resource{Name: "abort-on-property-read", Aliases: []string{"aopr"}, Kind: rules.TemplateKind{}, Content: "abort-on-property-read, {{1}}"}
	require.NoError(t, s.AddResource(r))

	got, ok := s.Lookup("abort-on-property-read.js")
	require.True(t, ok)
	assert.Equal(t, r, got)

	got, ok = s.Lookup("aopr")
	require.True(t, ok)
	assert.Equal(t, r, got)

	got, ok = s.Lookup("AOPR.JS")
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestSubstitutePositionalAndOutOfRange(t *testing.T) {
	out := Substitute("call({{1}}, {{2}}, {{5}})", []string{"a", "b"})
	assert.Equal(t, "call(a, b, {{5}})", out)
}

func TestSubstituteEscapesQuotes(t *testing.T) {
	out := Substitute(`x("{{1}}")`, []string{`a"b`})
	assert.Equal(t, `x("a\"b")`, out)
}

func TestResolveScriptletRendersTemplate(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{
		Name:    "abort-on-property-read",
		Kind:    rules.TemplateKind{},
		Content: "abort-on-property-read, {{1}}",
	}))
	body, err := s.ResolveScriptlet("abort-on-property-read", []string{"noAdBlockers"}, rules.PermissionAll)
	require.NoError(t, err)
	assert.Equal(t, "abort-on-property-read, noAdBlockers", body)
}

func TestResolveScriptletRejectsFnJavascript(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{Name: "lib", Kind: rules.FnJavascriptKind{}, Content: "x"}))
	_, err := s.ResolveScriptlet("lib", nil, rules.PermissionAll)
	assert.ErrorIs(t, err, ErrNotInjectable)
}

func TestResolveScriptletRejectsOverPermission(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{
		Name: "needs-network", Kind: rules.TemplateKind{}, Content: "x",
		Permission: rules.PermissionNetwork,
	}))
	_, err := s.ResolveScriptlet("needs-network", nil, rules.PermissionDOM)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestResolveScriptletPullsInDependencies(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{Name: "base-lib", Kind: rules.FnJavascriptKind{}, Content: "ZnVuY3Rpb24gYmFzZSgpe30="}))
	require.NoError(t, s.AddResource(&rules.Resource{
		Name: "scriptlet", Kind: rules.TemplateKind{}, Content: "run({{1}})",
		Dependencies: []string{"base-lib"},
	}))
	body, err := s.ResolveScriptlet("scriptlet", []string{"x"}, rules.PermissionAll)
	require.NoError(t, err)
	assert.Contains(t, body, "function base(){}")
	assert.Contains(t, body, "run(x)")
}

func TestResolveScriptletDependencyCycleTerminates(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{Name: "a", Kind: rules.FnJavascriptKind{}, Content: "a", Dependencies: []string{"b"}}))
	require.NoError(t, s.AddResource(&rules.Resource{Name: "b", Kind: rules.FnJavascriptKind{}, Content: "b", Dependencies: []string{"a"}}))
	require.NoError(t, s.AddResource(&rules.Resource{Name: "trigger", Kind: rules.TemplateKind{}, Content: "go()", Dependencies: []string{"a"}}))

	done := make(chan struct{})
	go func() {
		_, _ = s.ResolveScriptlet("trigger", nil, rules.PermissionAll)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dependency cycle did not terminate")
	}
}

func TestWrapScriptlet(t *testing.T) {
	out := WrapScriptlet("abort-on-property-read, noAdBlockers")
	assert.Contains(t, out, "try {")
	assert.Contains(t, out, "abort-on-property-read, noAdBlockers")
	assert.Contains(t, out, "} catch ( e ) { }")
}

func TestRenderRedirectMimeKind(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.AddResource(&rules.Resource{
		Name: "addthis.com/addthis_widget.js", Kind: rules.MimeKind{Type: rules.MimeApplicationJavascript}, Content: "Zm9v",
	}))
	uri, err := s.RenderRedirect("addthis.com/addthis_widget.js")
	require.NoError(t, err)
	assert.Equal(t, "data:application/javascript;base64,Zm9v", uri)
}

func TestRenderRedirectMissing(t *testing.T) {
	s := NewStorage()
	_, err := s.RenderRedirect("missing.js")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}
