package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var transactionCmd = &cobra.Command{
	Use:   "transaction <fully qualified name>",
	Short: "Open a transaction on an origin",
	Long: `Open a transaction on an origin: its union mount becomes writable.

Changes are folded into a new revision with "publish", or discarded with "abort".
Only one transaction may be open on a repository.
`,
	Example: `% cvmfs-server transaction acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runLocked("transaction", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Transaction(ctx, name)
		})
	},
}

func init() {
	rootCmd.AddCommand(transactionCmd)
}
