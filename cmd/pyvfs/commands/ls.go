package commands

import (
	"context"
	"fmt"

	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List a directory in the virtual tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithFS(cmd, func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error {
			if err := fs.Syncfs(ctx, true); err != nil {
				return err
			}

			entries, err := fs.ReadDir(ctx, args[0])
			if err != nil {
				return err
			}

			for _, e := range entries {
				kind := "-"
				if e.Kind == backend.KindDirectory {
					kind = "d"
				}
				fmt.Printf("%s %10d  %s  %s\n", kind, e.Size, e.ModTime.Format("2006-01-02 15:04:05"), e.Name)
			}
			return nil
		})
	},
}
