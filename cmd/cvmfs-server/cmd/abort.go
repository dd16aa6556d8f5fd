package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort <fully qualified name>",
	Short: "Discard the open transaction of an origin",
	Long: `Discard all the changes of the open transaction of an origin.

The operation is refused while some process holds files open in the union mount.
It asks for a confirmation, unless forced with -f.
`,
	Example: `% cvmfs-server abort -f acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runLocked("abort", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Abort(ctx, name, serverFlags.force)
		})
	},
}

func init() {
	addForceFlag(abortCmd)
	rootCmd.AddCommand(abortCmd)
}
