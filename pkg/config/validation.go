package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags cover ranges and enumerations; the rules that span several
// fields are checked afterwards.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry: endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling: endpoint is required when profiling is enabled")
	}

	if cfg.Auth.Secret == "" && !cfg.Auth.AllowAnonymous {
		return errors.New("auth: secret is required unless allow_anonymous is set")
	}

	if cfg.Metrics.Enabled && cfg.Server.IsEnabled() && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics: port %d is already used by the API server", cfg.Metrics.Port)
	}

	// Workspace ids are unique, and two workspaces never share a root
	ids := make(map[string]bool)
	roots := make(map[string]string)
	for i, ws := range cfg.Workspaces {
		if ids[ws.ID] {
			return fmt.Errorf("workspaces[%d]: duplicate workspace id %q", i, ws.ID)
		}
		ids[ws.ID] = true

		root := filepath.Clean(ws.Root)
		if other, ok := roots[root]; ok {
			return fmt.Errorf("workspaces[%d]: root %q is already mounted as %q", i, ws.Root, other)
		}
		roots[root] = ws.ID
	}

	if cfg.Search.IsEnabled() && !cfg.Search.InMemory && cfg.Search.Path == "" {
		return errors.New("search: path is required unless in_memory is set")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
