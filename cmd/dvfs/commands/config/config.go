// Package config holds the "dvfs config" subcommands, which inspect a
// configuration file without starting the server.
package config

import "github.com/spf13/cobra"

// Cmd groups the subcommands; it does nothing by itself.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration file",
	Long: `Check, print or describe the dvfs configuration.

A new file is written by "dvfs init". These commands read the file given
with --config, or the default location, and apply DVFS_* overrides.`,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd)
}
