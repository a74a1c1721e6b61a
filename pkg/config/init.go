package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the commented configuration written by "dvfs init".
// The single verb is the generated JWT secret.
const sampleConfig = `# DittoVFS Configuration File
#
# Every value can be overridden with an environment variable:
# DVFS_<SECTION>_<KEY>, e.g. DVFS_LOGGING_LEVEL=DEBUG

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text, json
  output: stdout     # stdout, stderr or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

shutdown_timeout: 30s

metrics:
  enabled: false
  port: 9090

server:
  enabled: true
  port: 8080
  read_timeout: 5m
  write_timeout: 5m
  idle_timeout: 60s
  request_timeout: 5m
  max_upload_size: 1Gi

auth:
  secret: "%s"
  issuer: dittovfs
  token_ttl: 1h
  allow_anonymous: false

# Directories exposed as workspaces. Ids may not contain ':' or '/'.
workspaces: []
#  - id: docs
#    root: /srv/docs
#    watch: true

locks:
  default_timeout: 10m
  sweep_interval: 1m

search:
  enabled: true
  in_memory: false
  # path defaults to <config dir>/index
`

// InitConfig writes a sample configuration file to the default location.
//
// Returns the path of the written file. Fails if the file exists and force
// is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file carries the JWT signing secret
	content := fmt.Sprintf(sampleConfig, secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns 32 random bytes hex-encoded.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
