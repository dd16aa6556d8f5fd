//go:build linux

package mount

import (
	"bytes"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

func hostSyscalls() syscalls {
	return syscalls{
		unmount: func(path string) error {
			return unix.Unmount(path, 0)
		},
		readOnly: func(path string) (bool, error) {
			var st unix.Statfs_t
			if err := unix.Statfs(path, &st); err != nil {
				return false, err
			}
			return st.Flags&unix.ST_RDONLY != 0, nil
		},
		getxattr: func(path, attr string) ([]byte, error) {
			buf := make([]byte, 256)
			for {
				n, err := unix.Getxattr(path, attr, buf)
				if err == unix.ERANGE {
					buf = make([]byte, 2*len(buf))
					continue
				}
				if err != nil {
					return nil, err
				}
				return bytes.TrimRight(buf[:n], "\x00\n"), nil
			}
		},
		mounts: procfs.GetMounts,
	}
}
