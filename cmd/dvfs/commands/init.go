package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/internal/cli/prompt"
	"github.com/marmos91/dittovfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoVFS configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittovfs/config.yaml.
Use --config to specify a custom path. An existing file is only replaced after
confirmation, or with --force.

Examples:
  # Initialize with default location
  dvfs init

  # Initialize with custom path
  dvfs init --config /etc/dittovfs/config.yaml

  # Force overwrite existing config
  dvfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	overwrite := false
	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite %s", configPath), initForce)
		if err != nil && !errors.Is(err, prompt.ErrAborted) {
			return err
		}
		if !ok {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
		overwrite = true
	}

	if err := config.InitConfigToPath(configPath, overwrite); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Add your directories under 'workspaces'")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: dvfs start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: dvfs start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "  4. Mint an access token with: dvfs token <user>")
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  A random JWT secret has been generated for development use.")
	_, _ = fmt.Fprintln(out, "  For production, generate a secure secret and use an environment variable:")
	_, _ = fmt.Fprintln(out, "    export DVFS_AUTH_SECRET=$(openssl rand -hex 32)")

	return nil
}
