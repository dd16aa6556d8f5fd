package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <fully qualified name>",
	Short: "Publish the open transaction of an origin",
	Long: `Fold the changes of the open transaction of an origin into a new signed revision.

The union mount is made read-only before the changes are synchronized to the upstream
storage. When the synchronization fails, the repository stays read-only and in transaction:
fix the cause, then publish again or abort.

With -d, the debug build of the swissknife is used. With -D, it runs under a debugger.
`,
	Example: `% cvmfs-server publish acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		if serverFlags.publish.debug && serverFlags.publish.debugger {
			wrapUsagef("-d and -D are mutually exclusive")
			return
		}
		mode := swissknife.Normal
		switch {
		case serverFlags.publish.debug:
			mode = swissknife.Debug
		case serverFlags.publish.debugger:
			mode = swissknife.Debugger
		}
		infoLogger.Printf("Publishing %s", name)
		runLocked("publish", name, func(ctx context.Context, srv *core.Server) error {
			return srv.Publish(ctx, name, mode)
		})
	},
}

func init() {
	addDebugFlags(publishCmd)
	rootCmd.AddCommand(publishCmd)
}
