package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var rmfsCmd = &cobra.Command{
	Use:   "rmfs <fully qualified name>",
	Short: "Remove a repository",
	Long: `Remove a repository from this host, including its storage and signing keys.

It asks for a confirmation, unless forced with -f. An origin in transaction is only
removed when forced.
`,
	Example: `% cvmfs-server rmfs acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runLocked("rmfs", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Rmfs(ctx, name, serverFlags.force)
		})
	},
}

func init() {
	addForceFlag(rmfsCmd)
	rootCmd.AddCommand(rmfsCmd)
}
