// Copyright © 2018 One Concern

// Package localfs implements the storage interface on a local file system.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nc6/cvmfs/pkg/storage"
	"github.com/nc6/cvmfs/pkg/storage/status"
	"github.com/spf13/afero"
)

// DefaultStageDir is the staging area of atomic puts, relative to the root of the store
const DefaultStageDir = "data/txn"

// Option for the local store
type Option func(*localFS)

// StageDir sets the staging area of atomic puts, relative to the root of the store
func StageDir(dir string) Option {
	return func(l *localFS) {
		if dir != "" {
			l.stage = strings.Trim(filepath.ToSlash(dir), "/")
		}
	}
}

// New creates a new local file system backed storage rooted at dir.
//
// Puts are atomic: objects are written in the staging area, then renamed into place.
func New(fs afero.Fs, dir string, opts ...Option) storage.Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	l := &localFS{
		fs:    afero.NewBasePathFs(fs, dir),
		root:  dir,
		stage: DefaultStageDir,
	}
	for _, apply := range opts {
		apply(l)
	}
	return l
}

type localFS struct {
	fs    afero.Fs
	root  string
	stage string
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + filepath.ToSlash(key))
	if k == "/" {
		return "", status.ErrInvalidKey.Wrapf("empty key %q", key)
	}
	return k, nil
}

func (l *localFS) staged(key string) bool {
	k := strings.TrimPrefix(key, "/")
	return k == l.stage || strings.HasPrefix(k, l.stage+"/")
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(k)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.Wrapf("%s in %s", key, l)
	}
	k, _ := cleanKey(key)
	return l.fs.Open(k)
}

func (l *localFS) Put(_ context.Context, key string, source io.Reader) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if l.staged(k) {
		return status.ErrInvalidKey.Wrapf("key %q conflicts with staging area %q", key, l.stage)
	}
	if err = l.fs.MkdirAll("/"+l.stage, 0755); err != nil {
		return fmt.Errorf("ensuring staging area %q: %w", l.stage, err)
	}
	target, err := afero.TempFile(l.fs, "/"+l.stage, "put-")
	if err != nil {
		return fmt.Errorf("create record for %q: %w", key, err)
	}
	staging := target.Name()
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		_ = l.fs.Remove(staging)
		return fmt.Errorf("write record for %q: %w", key, err)
	}
	if err = target.Close(); err != nil {
		_ = l.fs.Remove(staging)
		return err
	}
	// objects are world readable, they are served over HTTP
	if err = l.fs.Chmod(staging, 0644); err != nil {
		_ = l.fs.Remove(staging)
		return err
	}
	if err = l.fs.MkdirAll(path.Dir(k), 0755); err != nil {
		_ = l.fs.Remove(staging)
		return fmt.Errorf("ensuring directories for %q: %w", key, err)
	}
	return l.fs.Rename(staging, k)
}

func (l *localFS) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(k); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

func (l *localFS) Keys(_ context.Context) ([]string, error) {
	const root = "/"
	var res []string
	e := afero.Walk(l.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if info.IsDir() {
			if l.staged(p) {
				return filepath.SkipDir
			}
			return nil
		}
		res = append(res, strings.TrimPrefix(filepath.ToSlash(p), root))
		return nil
	})
	if e != nil {
		if os.IsNotExist(e) {
			return nil, nil
		}
		return nil, e
	}
	sort.Strings(res)
	return res, nil
}

// Clear removes everything under the root of the store, keeping the root itself
func (l *localFS) Clear(_ context.Context) error {
	entries, err := afero.ReadDir(l.fs, "/")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := l.fs.RemoveAll("/" + entry.Name()); err != nil {
			return fmt.Errorf("clearing %s: %w", l, err)
		}
	}
	return nil
}

func (l *localFS) String() string {
	return "localfs@" + l.root
}
