package cmd

import (
	"time"

	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		logLevel string
	}
	force   bool
	publish struct {
		debug    bool
		debugger bool
	}
	repo struct {
		user          string
		upstream      string
		stratumURL    string
		hashAlgorithm string
	}
	replica struct {
		workers int
		timeout time.Duration
		retries int
	}
	output struct {
		format string
	}
}

var serverFlags = flagsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "loglevel"
	cmd.PersistentFlags().StringVar(&serverFlags.root.logLevel, logLevel, "", `The logging level: "none", "error", "warn", "info" or "debug". Defaults to the configured level`)
	return logLevel
}

func addForceFlag(cmd *cobra.Command) string {
	force := "force"
	cmd.Flags().BoolVarP(&serverFlags.force, force, "f", false, "Do not ask for confirmation")
	return force
}

func addDebugFlags(cmd *cobra.Command) (string, string) {
	debug, debugger := "debug", "debugger"
	cmd.Flags().BoolVarP(&serverFlags.publish.debug, debug, "d", false, "Publish with the debug build of the swissknife")
	cmd.Flags().BoolVarP(&serverFlags.publish.debugger, debugger, "D", false, "Publish with the debug build of the swissknife, interactively under a debugger")
	return debug, debugger
}

func addUserFlag(cmd *cobra.Command) string {
	user := "owner"
	cmd.Flags().StringVarP(&serverFlags.repo.user, user, "o", "", "The unix account owning the repository")
	return user
}

func addUpstreamFlag(cmd *cobra.Command) string {
	upstream := "upstream"
	cmd.Flags().StringVarP(&serverFlags.repo.upstream, upstream, "u", "",
		`The upstream storage, as "<type>,<temp dir>,<config>". Defaults to a local storage under the storage root`)
	return upstream
}

func addStratumURLFlag(cmd *cobra.Command) string {
	stratum := "stratum0"
	cmd.Flags().StringVarP(&serverFlags.repo.stratumURL, stratum, "w", "", "The URL of the repository. Defaults to http://localhost/cvmfs/<name>")
	return stratum
}

func addHashAlgorithmFlag(cmd *cobra.Command) string {
	hash := "hash"
	cmd.Flags().StringVarP(&serverFlags.repo.hashAlgorithm, hash, "a", "", "The content hash algorithm: sha1, rmd160 or shake128. Defaults to sha1")
	return hash
}

func addReplicaFlags(cmd *cobra.Command) {
	defaults := model.DefaultReplicaSettings()
	cmd.Flags().IntVarP(&serverFlags.replica.workers, "workers", "n", defaults.Workers, "The number of concurrent downloads")
	cmd.Flags().DurationVarP(&serverFlags.replica.timeout, "timeout", "t", defaults.Timeout, "The timeout of HTTP requests to the origin")
	cmd.Flags().IntVarP(&serverFlags.replica.retries, "retries", "r", defaults.Retries, "The number of retries of HTTP requests to the origin")
}

func addOutputFlag(cmd *cobra.Command) string {
	output := "output"
	cmd.Flags().StringVar(&serverFlags.output.format, output, formatTable, `The output format: "table" or "yaml"`)
	return output
}
