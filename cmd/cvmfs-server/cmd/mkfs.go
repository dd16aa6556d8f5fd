package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs -o <owner> <fully qualified name>",
	Short: "Create an origin",
	Long: `Create an origin on this host.

This generates the signing keys, the spool area and the storage of the repository,
registers it, publishes an empty first revision and mounts it read-only.
`,
	Example: `% cvmfs-server mkfs -o cvmfs acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := core.MkfsRequest{
			Name:          args[0],
			User:          serverFlags.repo.user,
			Upstream:      serverFlags.repo.upstream,
			StratumURL:    serverFlags.repo.stratumURL,
			HashAlgorithm: serverFlags.repo.hashAlgorithm,
		}
		infoLogger.Printf("Creating %s", req.Name)
		runLocked("mkfs", req.Name, func(ctx context.Context, srv *core.Server) error {
			return srv.Mkfs(ctx, req)
		})
	},
}

func init() {
	requiredFlags := []string{addUserFlag(mkfsCmd)}
	addUpstreamFlag(mkfsCmd)
	addStratumURLFlag(mkfsCmd)
	addHashAlgorithmFlag(mkfsCmd)
	for _, flag := range requiredFlags {
		err := mkfsCmd.MarkFlagRequired(flag)
		if err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(mkfsCmd)
}
