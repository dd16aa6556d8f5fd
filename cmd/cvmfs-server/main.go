// Copyright © 2018 One Concern

package main

import (
	"github.com/nc6/cvmfs/cmd/cvmfs-server/cmd"
)

func main() {
	cmd.Execute()
}
