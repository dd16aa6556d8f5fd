package cmd

import (
	"context"
	"time"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:     "info <fully qualified name>",
	Short:   "Show the state of a repository",
	Example: `% cvmfs-server info acme.example.org --output yaml`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		if err := checkFormat(serverFlags.output.format); err != nil {
			wrapUsagef("%v", err)
			return
		}
		runOperation("info", func(ctx context.Context, srv *core.Server) error {
			info, err := srv.Info(ctx, name)
			if err != nil {
				return err
			}
			return printInfo(infoLogger.Writer(), serverFlags.output.format, info, time.Now())
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the repositories hosted on this machine",
	Aliases: []string{"ls"},
	Example: `% cvmfs-server list
NAME              	TYPE   	STATE         	URL
acme.example.org  	origin 	idle          	http://localhost/cvmfs/acme.example.org
mirror.example.org	replica	synced 2 hours ago	http://stratum0.example.org/cvmfs/mirror.example.org`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := checkFormat(serverFlags.output.format); err != nil {
			wrapUsagef("%v", err)
			return
		}
		runOperation("list", func(ctx context.Context, srv *core.Server) error {
			infos, err := srv.List(ctx)
			if err != nil {
				return err
			}
			return printList(infoLogger.Writer(), serverFlags.output.format, infos)
		})
	},
}

func init() {
	addOutputFlag(infoCmd)
	addOutputFlag(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
}
