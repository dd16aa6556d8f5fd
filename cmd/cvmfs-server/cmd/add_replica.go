package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var addReplicaCmd = &cobra.Command{
	Use:   "add-replica -o <owner> <fully qualified name> <origin URL> <public key>",
	Short: "Create a replica of an origin",
	Long: `Register a replica of an origin on this host.

Nothing is downloaded until the first snapshot.
`,
	Example: `% cvmfs-server add-replica -o cvmfs acme.example.org http://stratum0.example.org/cvmfs/acme.example.org /etc/cvmfs/keys/acme.example.org.pub`,
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		req := core.AddReplicaRequest{
			Name:      args[0],
			OriginURL: args[1],
			PublicKey: args[2],
			User:      serverFlags.repo.user,
			Upstream:  serverFlags.repo.upstream,
			Workers:   serverFlags.replica.workers,
			Timeout:   serverFlags.replica.timeout,
			Retries:   serverFlags.replica.retries,
		}
		runLocked("add replica", req.Name, func(ctx context.Context, srv *core.Server) error {
			return srv.AddReplica(ctx, req)
		})
	},
}

func init() {
	requiredFlags := []string{addUserFlag(addReplicaCmd)}
	addUpstreamFlag(addReplicaCmd)
	addReplicaFlags(addReplicaCmd)
	for _, flag := range requiredFlags {
		err := addReplicaCmd.MarkFlagRequired(flag)
		if err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(addReplicaCmd)
}
