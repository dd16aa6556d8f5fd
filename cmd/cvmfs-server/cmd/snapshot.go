package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <fully qualified name>",
	Short: "Synchronize a replica with its origin",
	Long: `Pull the new revisions of the origin of a replica.

The first snapshot fetches the whole history, later ones are incremental.
A failed snapshot is resumed by running it again.
`,
	Example: `% cvmfs-server snapshot mirror.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runLocked("snapshot", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Snapshot(ctx, name)
		})
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
