package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the DittoVFS configuration file.

Checks for syntax errors, missing required fields, invalid values and
workspace roots that are not directories.

Examples:
  # Validate default config
  dvfs config validate

  # Validate specific config file
  dvfs config validate --config /etc/dittovfs/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if len(cfg.Workspaces) == 0 {
		warnings = append(warnings, "No workspaces configured - the server will have nothing to serve")
	}
	for _, ws := range cfg.Workspaces {
		fi, err := os.Stat(ws.Root)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("Workspace %q: root %s is not accessible: %v", ws.ID, ws.Root, err))
		case !fi.IsDir():
			warnings = append(warnings, fmt.Sprintf("Workspace %q: root %s is not a directory", ws.ID, ws.Root))
		}
	}
	if cfg.Auth.AllowAnonymous {
		warnings = append(warnings, "Anonymous access is enabled - requests without a token act as the anonymous user")
	}
	if cfg.Locks.SweepInterval == 0 {
		warnings = append(warnings, "Lock sweeper disabled - expired locks are only cleared when touched")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	search := "disabled"
	if cfg.Search.IsEnabled() {
		search = cfg.Search.Path
		if cfg.Search.InMemory {
			search = "in memory"
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Workspaces:      %d\n", len(cfg.Workspaces))
	for _, ws := range cfg.Workspaces {
		_, _ = fmt.Fprintf(out, "    %-14s %s\n", ws.ID, ws.Root)
	}
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Search index:    %s\n", search)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
