package cmd

import (
	"context"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var skeletonCmd = &cobra.Command{
	Use:   "skeleton -o <owner> <directory>",
	Short: "Create the layout of a local storage",
	Long: `Create the directory layout of a local storage: 256 buckets for the data objects
and a staging area, owned by the given account.`,
	Example: `% cvmfs-server skeleton -o cvmfs /srv/cvmfs/acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := args[0]
		runOperation("skeleton", func(ctx context.Context, srv *core.Server) error {
			return srv.Skeleton(ctx, dir, serverFlags.repo.user)
		})
	},
}

func init() {
	requiredFlags := []string{addUserFlag(skeletonCmd)}
	for _, flag := range requiredFlags {
		err := skeletonCmd.MarkFlagRequired(flag)
		if err != nil {
			wrapFatalln("mark required flag", err)
			return
		}
	}
	rootCmd.AddCommand(skeletonCmd)
}
