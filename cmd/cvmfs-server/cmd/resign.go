package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var resignCmd = &cobra.Command{
	Use:   "resign <fully qualified name>",
	Short: "Renew the whitelist of an origin",
	Long: `Sign a fresh whitelist for an origin with its master key.

Clients refuse the revisions of a repository with an expired whitelist.
`,
	Example: `% cvmfs-server resign acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runLocked("resign", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Resign(ctx, name)
		})
	},
}

func init() {
	rootCmd.AddCommand(resignCmd)
}
