package cmd

import (
	"context"
	"strings"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:     "check <fully qualified name>",
	Short:   "Verify the integrity of a repository",
	Long:    `Verify the catalogs and the data objects of the published revision of a repository.`,
	Example: `% cvmfs-server check acme.example.org`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		runOperation("check", func(ctx context.Context, srv *core.Server) error {
			report, err := srv.Check(ctx, name)
			if report = strings.TrimSpace(report); report != "" {
				infoLogger.Println(report)
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
