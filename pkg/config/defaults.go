package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Built-in values used when a field is left at its zero value.
const (
	defaultLogLevel        = "INFO"
	defaultLogFormat       = "text"
	defaultLogOutput       = "stdout"
	defaultOTLPEndpoint    = "localhost:4317"
	defaultPyroscopeURL    = "http://localhost:4040"
	defaultShutdownTimeout = 30 * time.Second
	defaultMetricsPort     = 9090
	defaultIssuer          = "dittovfs"
	defaultTokenTTL        = time.Hour
	defaultLockTimeout     = 10 * time.Minute
)

var defaultProfileTypes = []string{
	"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines",
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}

// ApplyDefaults fills zero-valued fields of cfg. Values set in the file or
// the environment are kept; the log level is upper-cased.
func ApplyDefaults(cfg *Config) {
	setString(&cfg.Logging.Level, defaultLogLevel)
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	setString(&cfg.Logging.Format, defaultLogFormat)
	setString(&cfg.Logging.Output, defaultLogOutput)

	tel := &cfg.Telemetry
	setString(&tel.Endpoint, defaultOTLPEndpoint)
	if tel.SampleRate == 0 {
		tel.SampleRate = 1.0
	}
	setString(&tel.Profiling.Endpoint, defaultPyroscopeURL)
	if len(tel.Profiling.ProfileTypes) == 0 {
		tel.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}

	setDuration(&cfg.ShutdownTimeout, defaultShutdownTimeout)

	// The metrics port only matters when the endpoint is served.
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = defaultMetricsPort
	}

	cfg.Server.ApplyDefaults()

	setString(&cfg.Auth.Issuer, defaultIssuer)
	setDuration(&cfg.Auth.TokenTTL, defaultTokenTTL)

	// SweepInterval stays as given: zero turns the sweeper off.
	setDuration(&cfg.Locks.DefaultTimeout, defaultLockTimeout)

	if cfg.Search.Path == "" && !cfg.Search.InMemory {
		cfg.Search.Path = filepath.Join(GetConfigDir(), "index")
	}
}

// GetDefaultConfig returns the configuration written by "dvfs config init".
// It mounts nothing and admits anonymous callers, so it validates without
// a JWT secret.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Auth:  AuthConfig{AllowAnonymous: true},
		Locks: LockConfig{SweepInterval: time.Minute},
	}
	ApplyDefaults(cfg)
	return cfg
}
