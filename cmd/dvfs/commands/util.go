package commands

import (
	"fmt"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// findWorkspace returns the configured workspace named id.
func findWorkspace(cfg *config.Config, id string) (config.WorkspaceConfig, error) {
	for _, ws := range cfg.Workspaces {
		if ws.ID == id {
			return ws, nil
		}
	}
	return config.WorkspaceConfig{}, fmt.Errorf("workspace %q is not configured", id)
}
