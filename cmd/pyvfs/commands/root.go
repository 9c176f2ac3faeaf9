// Package commands implements the CLI commands for pyvfs.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pyvfs",
	Short: "pyvfs - Virtual filesystem over pluggable storage backends",
	Long: `pyvfs multiplexes heterogeneous storage backends (in-memory, embedded
key-value store, host directories, SQLite file stores, S3-compatible object
stores) behind mount points in a single POSIX-like tree.

Mounts are declared in the configuration file. Every command loads the
configuration, mounts the declared backends, and operates on virtual paths.

Use "pyvfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the config file path from the persistent flag.
func GetConfigFile() string {
	return configFile
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/pyvfs/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(syncCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
