package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("ENV", "")

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, defaultRegexIdleTimeout, cfg.Cache.RegexIdleTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)

	configFile, err := GetConfigFile()
	require.NoError(t, err)
	assert.FileExists(t, configFile)
}

func TestDefaultConfigScriptletPermissions(t *testing.T) {
	cfg := New()
	assert.True(t, cfg.Scriptlets.AllowDOM)
	assert.False(t, cfg.Scriptlets.AllowNetwork)
}
