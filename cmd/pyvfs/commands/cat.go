package commands

import (
	"context"
	"os"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file from the virtual tree to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, true); err != nil {
				return err
			}

			data, err := fs.ReadFile(ctx, args[0])
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(data)
			return err
		})
	},
}
