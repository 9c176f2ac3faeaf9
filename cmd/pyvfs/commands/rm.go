package commands

import (
	"context"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or empty directory from the virtual tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, true); err != nil {
				return err
			}

			entry, err := fs.Stat(ctx, args[0])
			if err != nil {
				return err
			}

			if entry.Kind == backend.KindDirectory {
				err = fs.Rmdir(ctx, args[0])
			} else {
				err = fs.Unlink(ctx, args[0])
			}
			if err != nil {
				return err
			}

			return fs.Syncfs(ctx, false)
		})
	},
}
