// Package config: default configuration values for goblock.
package config

import "time"

const (
	defaultRegexIdleTimeout   = 3 * time.Minute
	defaultRegexSweepInterval = 30 * time.Second

	defaultMaxLogSizeMB  = 100
	defaultMaxBackups    = 3
	defaultMaxLogAgeDays = 7
)

func getDefaultLogDir() string {
	logDir, err := GetLogDir()
	if err != nil {
		return ""
	}
	return logDir
}

// defaultConfig returns the default configuration values for goblock.
func defaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			RegexIdleTimeout:   defaultRegexIdleTimeout,
			RegexSweepInterval: defaultRegexSweepInterval,
		},
		Scriptlets: ScriptletConfig{
			AllowDOM:     true,
			AllowNetwork: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			LogDir:     getDefaultLogDir(),
			Filename:   "goblock.log",
			MaxSizeMB:  defaultMaxLogSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAgeDays: defaultMaxLogAgeDays,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// New returns a new default configuration instance, a convenience
// function for callers that want defaults without the full Manager.
func New() *Config {
	return defaultConfig()
}
