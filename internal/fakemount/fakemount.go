// Package fakemount provides an in-memory mount table for tests.
//
// It implements both the mount controller and the open-file finder.
package fakemount

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/openfiles"
)

// Table is a fake mount table
type Table struct {
	mx       sync.Mutex
	mounts   map[string]mount.Mode
	hashes   map[string]string
	staged   map[string]string
	holders  map[string][]openfiles.Holder
	failures map[string]error
	ops      []string
}

var (
	_ mount.Controller = &Table{}
	_ openfiles.Finder = &Table{}
)

// New empty mount table
func New() *Table {
	return &Table{
		mounts:   make(map[string]mount.Mode),
		hashes:   make(map[string]string),
		staged:   make(map[string]string),
		holders:  make(map[string][]openfiles.Holder),
		failures: make(map[string]error),
	}
}

func key(op, path string) string {
	return op + " " + filepath.Clean(path)
}

// Preset mounts path in mode, without recording an operation
func (t *Table) Preset(path string, mode mount.Mode) *Table {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.mounts[filepath.Clean(path)] = mode
	return t
}

// SetRootHash sets the root hash of a mounted read-only base layer
func (t *Table) SetRootHash(path, hash string) *Table {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.hashes[filepath.Clean(path)] = hash
	return t
}

// StageRootHash sets the root hash exposed by path after its next mount, like a newly published revision
func (t *Table) StageRootHash(path, hash string) {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.staged[filepath.Clean(path)] = hash
}

// Hold simulates a process holding a file open under path
func (t *Table) Hold(path string, holder openfiles.Holder) {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.holders[filepath.Clean(path)] = append(t.holders[filepath.Clean(path)], holder)
}

// Release all holders
func (t *Table) Release() {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.holders = make(map[string][]openfiles.Holder)
}

// Fail makes an operation ("mount", "unmount", "remount") on path fail with err
func (t *Table) Fail(op, path string, err error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.failures[key(op, path)] = err
}

// Ops returns the recorded operations, e.g. "remount rw /cvmfs/acme.example.org"
func (t *Table) Ops() []string {
	t.mx.Lock()
	defer t.mx.Unlock()
	return append([]string(nil), t.ops...)
}

// ResetOps forgets the recorded operations
func (t *Table) ResetOps() {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.ops = nil
}

// Snapshot returns a copy of the mount table
func (t *Table) Snapshot() map[string]mount.Mode {
	t.mx.Lock()
	defer t.mx.Unlock()
	res := make(map[string]mount.Mode, len(t.mounts))
	for k, v := range t.mounts {
		res[k] = v
	}
	return res
}

// Mode of a mount point. The boolean is false when nothing is mounted.
func (t *Table) Mode(path string) (mount.Mode, bool) {
	t.mx.Lock()
	defer t.mx.Unlock()
	m, ok := t.mounts[filepath.Clean(path)]
	return m, ok
}

func (t *Table) fail(op, path string) error {
	if err, ok := t.failures[key(op, path)]; ok {
		return &mount.Error{Op: op, Path: path, Err: err}
	}
	return nil
}

func (t *Table) doMount(op, path string, mode mount.Mode) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	p := filepath.Clean(path)
	t.ops = append(t.ops, fmt.Sprintf("%s %s %s", op, mode, p))
	if err := t.fail(op, p); err != nil {
		return err
	}
	if _, mounted := t.mounts[p]; mounted {
		return &mount.Error{Op: op, Path: p, Err: syscall.EBUSY}
	}
	t.mounts[p] = mode
	if hash, ok := t.staged[p]; ok {
		t.hashes[p] = hash
		delete(t.staged, p)
	}
	return nil
}

// MountReadOnly mounts path read-only
func (t *Table) MountReadOnly(_ context.Context, path string) error {
	return t.doMount("mount", path, mount.ReadOnly)
}

// MountReadWrite mounts path read-write
func (t *Table) MountReadWrite(_ context.Context, path string) error {
	return t.doMount("mount", path, mount.ReadWrite)
}

// Unmount path
func (t *Table) Unmount(_ context.Context, path string) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	p := filepath.Clean(path)
	t.ops = append(t.ops, "unmount "+p)
	if err := t.fail("unmount", p); err != nil {
		return err
	}
	if _, mounted := t.mounts[p]; !mounted {
		return &mount.Error{Op: "unmount", Path: p, Err: syscall.EINVAL}
	}
	delete(t.mounts, p)
	return nil
}

// Remount path in mode
func (t *Table) Remount(_ context.Context, path string, mode mount.Mode) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	p := filepath.Clean(path)
	t.ops = append(t.ops, fmt.Sprintf("remount %s %s", mode, p))
	if err := t.fail("remount", p); err != nil {
		return err
	}
	if _, mounted := t.mounts[p]; !mounted {
		return &mount.Error{Op: "remount", Path: p, Err: syscall.EINVAL}
	}
	t.mounts[p] = mode
	return nil
}

// Mounted tells if path is mounted
func (t *Table) Mounted(path string) (bool, error) {
	_, ok := t.Mode(path)
	return ok, nil
}

// Writable tells if path is mounted read-write
func (t *Table) Writable(path string) (bool, error) {
	mode, ok := t.Mode(path)
	if !ok {
		return false, &mount.Error{Op: "statfs", Path: path, Err: syscall.ENOENT}
	}
	return mode == mount.ReadWrite, nil
}

// RootHash of a mounted read-only base layer
func (t *Table) RootHash(path string) (string, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	p := filepath.Clean(path)
	if _, mounted := t.mounts[p]; !mounted {
		return "", &mount.Error{Op: "read root hash", Path: p, Err: syscall.ENOENT}
	}
	hash, ok := t.hashes[p]
	if !ok {
		return "", &mount.Error{Op: "read root hash", Path: p, Err: syscall.ENODATA}
	}
	return hash, nil
}

// OpenFiles lists the holders registered under path
func (t *Table) OpenFiles(path string) ([]openfiles.Holder, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	dir := filepath.Clean(path)
	var res []openfiles.Holder
	for p, holders := range t.holders {
		if p == dir || strings.HasPrefix(p, dir+"/") {
			res = append(res, holders...)
		}
	}
	return res, nil
}
