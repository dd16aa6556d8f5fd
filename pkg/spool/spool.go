// Package spool manages the working directories of repositories: the spool area
// (scratch, read-only base, temp, cache) and the skeleton of local upstream storage.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	dirMode = 0755

	// selinux type of content served over HTTP
	httpdContentType = "httpd_sys_content_t"
)

// Manager of spool directories
type Manager struct {
	fs     afero.Fs
	runner process.Runner
	l      *zap.Logger
}

// Option for the spool manager
type Option func(*Manager)

// Logger for the spool manager
func Logger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.l = l
		}
	}
}

// Runner used to label directories for selinux. Without a runner, no labeling is attempted.
func Runner(r process.Runner) Option {
	return func(m *Manager) {
		m.runner = r
	}
}

// New spool manager
func New(fs afero.Fs, opts ...Option) *Manager {
	m := &Manager{
		fs: fs,
		l:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Create the spool directories of a repository, owned by owner
func (m *Manager) Create(repo model.Repository, owner model.Owner) error {
	for _, dir := range repo.SpoolDirs() {
		if err := m.mkdir(dir, owner); err != nil {
			return err
		}
	}
	return nil
}

// Remove the spool area of a repository
func (m *Manager) Remove(repo model.Repository) error {
	m.l.Debug("removing spool area", zap.String("repo", repo.Name), zap.String("dir", repo.SpoolDir))
	if err := m.fs.RemoveAll(repo.SpoolDir); err != nil {
		return fmt.Errorf("removing spool area %s: %w", repo.SpoolDir, err)
	}
	return nil
}

// CreateSkeleton builds the two-level storage skeleton of local upstream storage:
// dir/data/00 to dir/data/ff plus the dir/data/txn staging area, owned by owner.
//
// When selinux is enabled on the host, the tree is labeled as web content.
func (m *Manager) CreateSkeleton(ctx context.Context, dir string, owner model.Owner) error {
	m.l.Debug("creating storage skeleton", zap.String("dir", dir), zap.Stringer("owner", owner))
	for _, d := range []string{dir, filepath.Join(dir, "data")} {
		if err := m.mkdir(d, owner); err != nil {
			return err
		}
	}
	for i := 0; i < 256; i++ {
		if err := m.mkdir(filepath.Join(dir, "data", fmt.Sprintf("%02x", i)), owner); err != nil {
			return err
		}
	}
	if err := m.mkdir(filepath.Join(dir, "data", "txn"), owner); err != nil {
		return err
	}
	return m.label(ctx, dir)
}

// ClearAndRecreate replaces dir with an empty directory owned by owner.
//
// The new directory is prepared aside and renamed into place, so that dir is missing
// only between two renames. This is best effort: readers may still observe the gap.
func (m *Manager) ClearAndRecreate(dir string, owner model.Owner) error {
	m.l.Debug("clearing directory", zap.String("dir", dir))
	parent, base := filepath.Split(filepath.Clean(dir))
	id := ksuid.New().String()
	fresh := filepath.Join(parent, "."+base+".new."+id)
	stale := filepath.Join(parent, "."+base+".old."+id)

	if err := m.mkdir(fresh, owner); err != nil {
		return err
	}
	info, err := m.fs.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		if err = m.fs.Chmod(fresh, info.Mode().Perm()); err != nil {
			return err
		}
		if err = m.fs.Rename(dir, stale); err != nil {
			_ = m.fs.RemoveAll(fresh)
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	case err == nil:
		_ = m.fs.RemoveAll(fresh)
		return fmt.Errorf("clearing %s: not a directory", dir)
	case !os.IsNotExist(err):
		_ = m.fs.RemoveAll(fresh)
		return err
	default:
		stale = ""
	}
	if err = m.fs.Rename(fresh, dir); err != nil {
		return fmt.Errorf("recreating %s: %w", dir, err)
	}
	if stale != "" {
		if err = m.fs.RemoveAll(stale); err != nil {
			return fmt.Errorf("removing former content of %s: %w", dir, err)
		}
	}
	return nil
}

// Size of the content of a directory, in bytes
func (m *Manager) Size(dir string) (int64, error) {
	var size int64
	err := afero.Walk(m.fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return size, nil
}

func (m *Manager) mkdir(dir string, owner model.Owner) error {
	if err := m.fs.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := m.fs.Chown(dir, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("setting owner of %s to %s: %w", dir, owner, err)
	}
	return nil
}

func (m *Manager) label(ctx context.Context, dir string) error {
	if m.runner == nil {
		return nil
	}
	if _, err := m.runner.LookPath("selinuxenabled"); err != nil {
		return nil
	}
	if _, err := m.runner.Run(ctx, process.Cmd{Name: "selinuxenabled"}); err != nil {
		// non-zero exit status: selinux is disabled
		return nil
	}
	m.l.Debug("labeling storage for selinux", zap.String("dir", dir))
	_, err := m.runner.Run(ctx, process.Cmd{Name: "chcon", Args: []string{"-R", "--type=" + httpdContentType, dir}})
	return err
}
