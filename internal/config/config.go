// Package config provides configuration management for the engine's
// ambient concerns (filter sources, cache tuning, scriptlet permission
// ceiling, logging) with Viper integration, narrowed from the teacher's
// desktop-browser configuration to what an embedding engine actually
// needs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// Config is the complete configuration surface for an embedding process
// built around this module's Engine.
type Config struct {
	FilterSources []FilterSourceConfig `mapstructure:"filter_sources" yaml:"filter_sources"`
	Cache         CacheConfig          `mapstructure:"cache" yaml:"cache"`
	Scriptlets    ScriptletConfig      `mapstructure:"scriptlets" yaml:"scriptlets"`
	Logging       LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Metrics       MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
}

// FilterSourceConfig names one local filter-list file to load at startup.
// Fetching remote lists is explicitly out of scope (see spec.md's
// Non-goals); this only names where to read already-downloaded bytes
// from disk.
type FilterSourceConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Tags restricts which $tag= rules from this source start enabled.
	Tags []string `mapstructure:"tags" yaml:"tags"`
}

// CacheConfig tunes the regex cache (spec §5).
type CacheConfig struct {
	RegexIdleTimeout   time.Duration `mapstructure:"regex_idle_timeout" yaml:"regex_idle_timeout"`
	RegexSweepInterval time.Duration `mapstructure:"regex_sweep_interval" yaml:"regex_sweep_interval"`
}

// ScriptletConfig sets the permission ceiling enforced on every scriptlet
// resolved for injection (spec §4.6); redirect rendering has no ceiling.
type ScriptletConfig struct {
	AllowDOM     bool `mapstructure:"allow_dom" yaml:"allow_dom"`
	AllowNetwork bool `mapstructure:"allow_network" yaml:"allow_network"`
}

// LoggingConfig holds structured-logging output configuration, grounded on
// the teacher's internal/logging rotation knobs.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogDir     string `mapstructure:"log_dir" yaml:"log_dir"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig toggles the optional Prometheus collectors (spec SPEC_FULL
// §6.5); this module never opens a network listener itself, so there is no
// "bind address" here, only whether the engine should register its
// collectors into a caller-supplied registerer.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a configuration manager that looks for "config.yaml"
// (or .json/.toml) in the XDG config directory and the current directory.
func NewManager() (*Manager, error) {
	v := viper.New()
	v.SetConfigName("config")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix("GOBLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"cache.regex_idle_timeout":   "GOBLOCK_CACHE_REGEX_IDLE_TIMEOUT",
		"cache.regex_sweep_interval": "GOBLOCK_CACHE_REGEX_SWEEP_INTERVAL",
		"scriptlets.allow_dom":       "GOBLOCK_SCRIPTLETS_ALLOW_DOM",
		"scriptlets.allow_network":   "GOBLOCK_SCRIPTLETS_ALLOW_NETWORK",
		"logging.level":              "GOBLOCK_LOGGING_LEVEL",
		"logging.format":             "GOBLOCK_LOGGING_FORMAT",
		"logging.log_dir":            "GOBLOCK_LOGGING_LOG_DIR",
		"metrics.enabled":            "GOBLOCK_METRICS_ENABLED",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

func (m *Manager) setDefaults() {
	d := defaultConfig()
	m.viper.SetDefault("cache.regex_idle_timeout", d.Cache.RegexIdleTimeout)
	m.viper.SetDefault("cache.regex_sweep_interval", d.Cache.RegexSweepInterval)
	m.viper.SetDefault("scriptlets.allow_dom", d.Scriptlets.AllowDOM)
	m.viper.SetDefault("scriptlets.allow_network", d.Scriptlets.AllowNetwork)
	m.viper.SetDefault("logging.level", d.Logging.Level)
	m.viper.SetDefault("logging.format", d.Logging.Format)
	m.viper.SetDefault("logging.log_dir", d.Logging.LogDir)
	m.viper.SetDefault("logging.filename", d.Logging.Filename)
	m.viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", d.Logging.Compress)
	m.viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Load reads the configuration from file and environment, writing a
// default config file when none is found.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if err := m.createDefaultConfig(); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := *m.config
	return &cfgCopy
}

// Watch starts watching the config file for changes and reloads
// automatically, notifying registered callbacks.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		return nil
	}

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reload config: %v\n", err)
			return
		}
		m.mu.RLock()
		cfg := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()
		for _, cb := range callbacks {
			cb(cfg)
		}
	})

	m.watching = true
	return nil
}

// OnConfigChange registers a callback invoked after every successful
// reload triggered by Watch.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// createDefaultConfig writes a default configuration file to the XDG
// config directory, as JSON (viper reads whichever of
// yaml/json/toml it finds under the "config" base name).
func (m *Manager) createDefaultConfig() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFile), dirPerm); err != nil {
		return err
	}

	data, err := json.MarshalIndent(defaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configFile, data, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Created default configuration file: %s\n", configFile)
	return nil
}

// GetConfigFile returns the path to the configuration file in use.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}

func (m *Manager) reload() error {
	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}
