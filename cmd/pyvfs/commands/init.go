package commands

import (
	"fmt"
	"os"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Create a configuration file with sensible defaults and a sample
in-memory mount.

By default the file is written to $XDG_CONFIG_HOME/pyvfs/config.yaml. Use
--config to write it somewhere else, and --force to overwrite an existing one.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to declare your mounts")
	fmt.Printf("  2. Inspect a mount with: pyvfs ls /mnt/mem --config %s\n", path)
	return nil
}
