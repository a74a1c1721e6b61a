// Package config loads the dvfs server configuration from YAML, DVFS_*
// environment variables and built-in defaults, in increasing precedence
// order from defaults to environment.
package config

import (
	"time"

	"github.com/marmos91/dittovfs/pkg/api"
)

// Config is the root of the configuration file.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds graceful shutdown of the servers.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Server  api.APIConfig `mapstructure:"server" yaml:"server"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`

	// Workspaces are mounted at startup, in order.
	Workspaces []WorkspaceConfig `mapstructure:"workspaces" validate:"dive" yaml:"workspaces"`

	Locks  LockConfig   `mapstructure:"locks" yaml:"locks"`
	Search SearchConfig `mapstructure:"search" yaml:"search"`
}

// LoggingConfig feeds logger.Init. Level is upper-cased by ApplyDefaults;
// Output is stdout, stderr or a file path.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OTLP trace export, off by default.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the collector's gRPC host:port.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`

	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the /metrics endpoint. Disabled means no
// collectors are registered at all.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AuthConfig configures JWT bearer authentication.
type AuthConfig struct {
	// Secret is the HMAC signing key; at least 32 characters.
	// Override: DVFS_AUTH_SECRET
	Secret string `mapstructure:"secret" validate:"omitempty,min=32" yaml:"secret"`

	// Issuer is the token issuer claim
	// Default: "dittovfs"
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenTTL is the lifetime of tokens minted by "dvfs token"
	// Default: 1h
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"gte=0" yaml:"token_ttl"`

	// AllowAnonymous lets requests without a token act as the anonymous subject
	AllowAnonymous bool `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`
}

// WorkspaceConfig names one directory exposed as a workspace.
type WorkspaceConfig struct {
	// ID is the workspace identifier used in item ids and URLs
	ID string `mapstructure:"id" validate:"required,excludesall=:/" yaml:"id"`

	// Root is the host directory backing the workspace
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// Watch reports changes made outside the server as events
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// LockConfig configures file locks.
type LockConfig struct {
	// DefaultTimeout applies to lock requests that carry no timeout.
	// Default: 10m
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gte=0" yaml:"default_timeout"`

	// SweepInterval is how often expired locks are released.
	// Zero disables the sweeper; expired locks are still ignored on access.
	// Default: 1m
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0" yaml:"sweep_interval"`
}

// SearchConfig configures the search index.
type SearchConfig struct {
	// Enabled controls whether the index is built and queries are served.
	// Use a pointer to distinguish "not set" from "explicitly false"
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the index directory
	// Default: <config dir>/index
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory keeps the index in RAM; it is rebuilt on every start
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// IsEnabled reports whether search is on; unset means yes.
func (c *SearchConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
