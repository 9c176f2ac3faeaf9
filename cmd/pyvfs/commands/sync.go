package commands

import (
	"context"
	"fmt"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/spf13/cobra"
)

var syncPopulate bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize all mounts with their backing stores",
	Long: `Flush dirty entries from every mount to its backing store. With
--populate, pull backend changes into the virtual tree instead of flushing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, syncPopulate); err != nil {
				return err
			}

			for _, path := range fs.MountPaths() {
				fmt.Printf("synced %s\n", path)
			}
			return nil
		})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncPopulate, "populate", false, "Pull backend changes into the tree instead of flushing")
}
