package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/internal/cli/output"
	"github.com/marmos91/dittovfs/pkg/config"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration dvfs start would run with: the file, DVFS_*
environment overrides and defaults merged. The auth secret is masked.

  dvfs config show
  dvfs config show -o json --config /etc/dittovfs/config.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.MustLoad(path)
		if err != nil {
			return err
		}
		return printConfig(cmd, cfg)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "output", "o", "yaml", "output format: yaml or json")
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Auth.Secret != "" {
		cfg.Auth.Secret = "********"
	}
	format, err := output.ParseFormat(showFormat)
	if err != nil {
		return err
	}
	switch format {
	case output.FormatYAML:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return fmt.Errorf("config show supports yaml and json, not %s", format)
	}
}
