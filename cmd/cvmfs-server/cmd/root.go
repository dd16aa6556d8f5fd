// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cvmfs-server",
	Short: "cvmfs-server maintains the repositories hosted on this machine",
	Long: `cvmfs-server maintains the repositories hosted on this machine.

Origins (stratum 0) are edited in transactions: "transaction" makes the union mount
writable, "publish" folds the changes into a new signed revision and "abort" discards them.

Replicas (stratum 1) mirror the signed revisions of an origin with "snapshot".
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Usage()
		osExit(exitUsage)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_, _ = fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		osExit(exitUsageMessage)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addLogLevelFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault(keyRepositoriesDir, "/etc/cvmfs/repositories.d")
	viper.SetDefault(keyKeysDir, "/etc/cvmfs/keys")
	viper.SetDefault(keySpoolRoot, "/var/spool/cvmfs")
	viper.SetDefault(keyUnionRoot, "/cvmfs")
	viper.SetDefault(keyStorageRoot, "/srv/cvmfs")
	viper.SetDefault(keyFstab, "/etc/fstab")
	viper.SetDefault(keyHooksDir, "/etc/cvmfs/hooks")
	viper.SetDefault(keyLockDir, "/run/cvmfs")
	viper.SetDefault(keySwissknife, "cvmfs_swissknife")
	viper.SetDefault(keySwissknifeDebug, "cvmfs_swissknife_debug")
	viper.SetDefault(keyDebugger, "gdb")
	viper.SetDefault(keyOpenSSL, "openssl")
	viper.SetDefault(keyLogLevel, "info")
	viper.SetDefault(keyMetricsTextfile, "")
	viper.SetDefault(keyWhitelistValidity, "720h")

	if os.Getenv("CVMFS_SERVER_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("CVMFS_SERVER_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.cvmfs")
		viper.AddConfigPath("/etc/cvmfs")
		viper.SetConfigName("cvmfs-server")
	}

	viper.SetEnvPrefix("CVMFS_SERVER")
	viper.AutomaticEnv() // read in environment variables that match
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		wrapFatalln("invalid configuration", err)
		return
	}
	config.setParams(&serverFlags)
}
