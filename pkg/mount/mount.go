// Package mount drives the union mount of a repository and its read-only base layer.
//
// This is the only package touching the kernel mount table.
package mount

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nc6/cvmfs/pkg/process"
	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// Mode of a mount
type Mode string

const (
	// ReadOnly mount
	ReadOnly Mode = "ro"

	// ReadWrite mount
	ReadWrite Mode = "rw"

	// RootHashAttribute is the extended attribute exposing the root hash of the read-only base layer
	RootHashAttribute = "user.root_hash"
)

// Controller performs and reverses mounts. Every operation is synchronous.
type Controller interface {
	// MountReadOnly mounts an fstab entry read-only
	MountReadOnly(ctx context.Context, path string) error

	// MountReadWrite mounts an fstab entry read-write
	MountReadWrite(ctx context.Context, path string) error

	// Unmount a mounted path
	Unmount(ctx context.Context, path string) error

	// Remount a mounted path in another mode
	Remount(ctx context.Context, path string, mode Mode) error

	// Mounted tells if something is mounted at path
	Mounted(path string) (bool, error)

	// Writable tells if the mount at path accepts writes
	Writable(path string) (bool, error)

	// RootHash reads the content root hash of a read-only base layer
	RootHash(path string) (string, error)
}

// Error reports a failed mount operation, with the underlying OS error
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap the OS error
func (e *Error) Unwrap() error {
	return e.Err
}

// Option for the mount controller
type Option func(*controller)

// Logger for the mount controller
func Logger(l *zap.Logger) Option {
	return func(c *controller) {
		if l != nil {
			c.l = l
		}
	}
}

// MountCommand sets the mount(8) executable
func MountCommand(name string) Option {
	return func(c *controller) {
		if name != "" {
			c.mountCmd = name
		}
	}
}

// New mount controller.
//
// Mounts are performed with mount(8), which knows about the fstab entries and the fuse
// and overlay helpers. Unmounts and state queries use system calls.
func New(runner process.Runner, opts ...Option) Controller {
	c := &controller{
		runner:   runner,
		mountCmd: "mount",
		l:        zap.NewNop(),
		sys:      hostSyscalls(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// syscalls isolates the host-specific calls
type syscalls struct {
	unmount  func(string) error
	readOnly func(string) (bool, error)
	getxattr func(string, string) ([]byte, error)
	mounts   func() ([]*procfs.MountInfo, error)
}

type controller struct {
	runner   process.Runner
	mountCmd string
	l        *zap.Logger
	sys      syscalls
}

func (c *controller) mount(ctx context.Context, op string, path string, args ...string) error {
	c.l.Debug(op, zap.String("path", path))
	_, err := c.runner.Run(ctx, process.Cmd{
		Name: c.mountCmd,
		Args: append(args, path),
	})
	if err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	return nil
}

func (c *controller) MountReadOnly(ctx context.Context, path string) error {
	return c.mount(ctx, "mount read-only", path, "-o", string(ReadOnly))
}

func (c *controller) MountReadWrite(ctx context.Context, path string) error {
	return c.mount(ctx, "mount read-write", path, "-o", string(ReadWrite))
}

func (c *controller) Remount(ctx context.Context, path string, mode Mode) error {
	if mode != ReadOnly && mode != ReadWrite {
		return &Error{Op: "remount", Path: path, Err: fmt.Errorf("invalid mode %q", mode)}
	}
	return c.mount(ctx, "remount "+string(mode), path, "-o", "remount,"+string(mode))
}

func (c *controller) Unmount(_ context.Context, path string) error {
	c.l.Debug("unmount", zap.String("path", path))
	if err := c.sys.unmount(path); err != nil {
		return &Error{Op: "unmount", Path: path, Err: err}
	}
	return nil
}

func (c *controller) Mounted(path string) (bool, error) {
	info, err := c.find(path)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (c *controller) Writable(path string) (bool, error) {
	ro, err := c.sys.readOnly(path)
	if err != nil {
		return false, &Error{Op: "statfs", Path: path, Err: err}
	}
	return !ro, nil
}

func (c *controller) RootHash(path string) (string, error) {
	value, err := c.sys.getxattr(path, RootHashAttribute)
	if err != nil {
		return "", &Error{Op: "read root hash", Path: path, Err: err}
	}
	return string(value), nil
}

func (c *controller) find(path string) (*procfs.MountInfo, error) {
	mounts, err := c.sys.mounts()
	if err != nil {
		return nil, &Error{Op: "list mounts", Path: path, Err: err}
	}
	clean := filepath.Clean(path)
	var found *procfs.MountInfo
	for _, m := range mounts {
		// the last mount on a mount point shadows the former ones
		if filepath.Clean(m.MountPoint) == clean {
			found = m
		}
	}
	return found, nil
}
