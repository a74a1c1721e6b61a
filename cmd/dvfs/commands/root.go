// Package commands implements the dvfs command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/cmd/dvfs/commands/config"
)

// Build metadata, set with -ldflags "-X github.com/marmos91/dittovfs/cmd/dvfs/commands.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// cfgFile is the value of the persistent --config flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dvfs",
	Short: "Serve local directories as a virtual file system",
	Long: `dvfs exposes host directories as workspaces. Every file and folder is an
item with a stable id, custom properties, an access control list and an
optional lock; changes are published as events and indexed for search.

The server speaks JSON over HTTP. The same binary is also a client for a
running server (see "dvfs remote").`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to config.yaml (default $XDG_CONFIG_HOME/dittovfs/config.yaml)")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		startCmd,
		statusCmd,
		lsCmd,
		tokenCmd,
		remoteCmd,
		config.Cmd,
	)
}

// Execute runs the command selected by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the --config flag; empty selects the default path.
func GetConfigFile() string {
	return cfgFile
}
