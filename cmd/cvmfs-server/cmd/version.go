package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

// VersionInfo describes the build of the binary
type VersionInfo struct {
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	BuildDate string `json:"buildDate,omitempty" yaml:"buildDate,omitempty"`
	GitCommit string `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitState  string `json:"gitState,omitempty" yaml:"gitState,omitempty"`
}

// NewVersionInfo from the build variables
func NewVersionInfo() VersionInfo {
	ver := VersionInfo{
		Version:   "dev",
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}
	if Version != "" {
		ver.Version = Version
		ver.GitState = "clean"
	}
	if GitState != "" {
		ver.GitState = GitState
	}
	return ver
}

func (v VersionInfo) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Version: %s\n", v.Version)
	fmt.Fprintf(&buf, "Build date: %s\n", v.BuildDate)
	fmt.Fprintf(&buf, "Commit: %s\n", v.GitCommit)
	fmt.Fprintf(&buf, "Working tree: %s\n", v.GitState)
	return buf.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of cvmfs-server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		infoLogger.Print(NewVersionInfo().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
