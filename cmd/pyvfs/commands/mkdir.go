package commands

import (
	"context"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/spf13/cobra"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory in the virtual tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, true); err != nil {
				return err
			}

			var err error
			if mkdirParents {
				err = fs.MkdirTree(ctx, args[0])
			} else {
				err = fs.Mkdir(ctx, args[0])
			}
			if err != nil {
				return err
			}

			return fs.Syncfs(ctx, false)
		})
	},
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "Create parent directories as needed")
}
