package api

import (
	"time"

	"github.com/marmos91/dittovfs/internal/bytesize"
)

// APIConfig configures the REST server.
type APIConfig struct {
	// Enabled is a pointer so an omitted key keeps the server on.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Read and write timeouts cover whole bodies, so they default to
	// minutes rather than seconds.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds one request, content transfer included.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// MaxUploadSize caps content bodies ("512Mi", "2GB"). Zero is unlimited.
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}

// IsEnabled reports whether the server should start; unset means yes.
func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ApplyDefaults fills zero fields: port 8080, 5m read, write and request
// timeouts, 60s idle timeout.
func (c *APIConfig) ApplyDefaults() {
	defaults := []struct {
		field *time.Duration
		value time.Duration
	}{
		{&c.ReadTimeout, 5 * time.Minute},
		{&c.WriteTimeout, 5 * time.Minute},
		{&c.IdleTimeout, time.Minute},
		{&c.RequestTimeout, 5 * time.Minute},
	}
	for _, d := range defaults {
		if *d.field == 0 {
			*d.field = d.value
		}
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
}
