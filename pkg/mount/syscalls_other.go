//go:build !linux

package mount

import (
	"errors"

	"github.com/prometheus/procfs"
)

var errUnsupported = errors.New("mount operations are only supported on linux")

func hostSyscalls() syscalls {
	return syscalls{
		unmount:  func(string) error { return errUnsupported },
		readOnly: func(string) (bool, error) { return false, errUnsupported },
		getxattr: func(string, string) ([]byte, error) { return nil, errUnsupported },
		mounts:   func() ([]*procfs.MountInfo, error) { return nil, errUnsupported },
	}
}
