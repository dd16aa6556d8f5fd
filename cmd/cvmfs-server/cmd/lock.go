package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nightlyone/lockfile"
)

// lockRepository takes the host-level lock of a repository, held by the pid of this process.
//
// A lock left behind by a dead process is taken over.
func lockRepository(dir, name string) (func() error, error) {
	if err := model.ValidateName(name); err != nil {
		return nil, status.ErrInvalidName.Wrap(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name+".lock"))
	if err != nil {
		return nil, err
	}
	lock, err := lockfile.New(path)
	if err != nil {
		return nil, err
	}
	if err = lock.TryLock(); err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			if owner, oerr := lock.GetOwner(); oerr == nil {
				return nil, status.ErrLocked.Wrapf("%s is locked by pid %d", name, owner.Pid)
			}
			return nil, status.ErrLocked.Wrapf("%s", name)
		}
		return nil, fmt.Errorf("locking %s: %w", name, err)
	}
	return lock.Unlock, nil
}

// runLocked runs an operation mutating a repository, one at a time on this host
func runLocked(msg, name string, operation func(context.Context, *core.Server) error) {
	unlock, err := lockRepository(config.LockDir, name)
	if err != nil {
		wrapFatalln(msg, err)
		return
	}
	defer func() {
		if err := unlock(); err != nil {
			errLogger.Printf("failed to release the lock of %s: %v", name, err)
		}
	}()
	runOperation(msg, operation)
}
