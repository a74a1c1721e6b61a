package telemetry

// Service identifies the process to trace and profile backends.
type Service struct {
	Name    string
	Version string
}

// DefaultService is the identity used when the binary carries no version.
func DefaultService() Service {
	return Service{Name: "dittovfs", Version: "dev"}
}

// Config controls OTLP trace export.
type Config struct {
	Enabled bool
	Service Service

	// Endpoint is the collector's gRPC address, e.g. "localhost:4317".
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of root spans kept, 0 to 1.
	SampleRate float64
}

func DefaultConfig() Config {
	return Config{
		Service:    DefaultService(),
		Endpoint:   "localhost:4317",
		Insecure:   true,
		SampleRate: 1.0,
	}
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool
	Service Service

	// Endpoint is the Pyroscope server URL, e.g. "http://localhost:4040".
	Endpoint string

	// ProfileTypes names the profiles to collect; see profileTypes for the
	// accepted values.
	ProfileTypes []string
}

func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Service:      DefaultService(),
		Endpoint:     "http://localhost:4040",
		ProfileTypes: []string{"cpu", "alloc_space", "inuse_space", "goroutines"},
	}
}
