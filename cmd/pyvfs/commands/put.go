package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <local-file> <path>",
	Short: "Copy a local file into the virtual tree",
	Long: `Copy a local file into the virtual tree and flush it to the backing
store of the mount that owns the destination path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, true); err != nil {
				return err
			}

			if err := fs.WriteFile(ctx, args[1], data); err != nil {
				return err
			}

			if err := fs.Syncfs(ctx, false); err != nil {
				return err
			}

			fmt.Printf("wrote %d bytes to %s\n", len(data), args[1])
			return nil
		})
	},
}
