package core

import (
	"context"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/hooks"
	"github.com/nc6/cvmfs/pkg/lock"
	"github.com/nc6/cvmfs/pkg/mount"
	"go.uber.org/zap"
)

// Transaction opens a transaction on an origin: the union mount becomes writable.
//
// The transaction marker is created only after the union mount is writable.
func (s *Server) Transaction(ctx context.Context, name string) (err error) {
	defer func(t0 time.Time) { s.observe(OpTransaction, name, t0, err) }(time.Now())
	l := s.logger(OpTransaction, name)

	repo, err := s.loadOrigin(name)
	if err != nil {
		return err
	}
	marker := s.transactionLock(repo)
	held, err := marker.Held()
	if err != nil {
		return err
	}
	if held {
		return status.ErrAlreadyInTransaction.Wrapf("%s", name)
	}

	if err = s.hooks.Run(ctx, hooks.TransactionBefore, name); err != nil {
		return err
	}

	l.Debug("remounting union read-write", zap.String("step", "remount"), zap.String("path", repo.UnionDir))
	if err = s.mounts.Remount(ctx, repo.UnionDir, mount.ReadWrite); err != nil {
		return mountErr(err)
	}

	l.Debug("creating transaction marker", zap.String("step", "lock"))
	if err = marker.Acquire(); err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return status.ErrAlreadyInTransaction.Wrap(err)
		}
		return err
	}

	return s.hooks.Run(ctx, hooks.TransactionAfter, name)
}

// Abort discards the changes of the open transaction of an origin.
//
// Nothing is mutated when a process holds files open in the union mount, or when the
// operator declines. A failure after that point leaves the repository as is, for the
// operator to diagnose: there is no rollback.
func (s *Server) Abort(ctx context.Context, name string, force bool) (err error) {
	defer func(t0 time.Time) { s.observe(OpAbort, name, t0, err) }(time.Now())
	l := s.logger(OpAbort, name)

	repo, err := s.loadOrigin(name)
	if err != nil {
		return err
	}
	if err = s.requireTransaction(repo); err != nil {
		return err
	}
	if err = s.requireIdle(repo); err != nil {
		return err
	}
	if err = s.confirm(force, "You are about to DISCARD ALL CHANGES OF THE CURRENT TRANSACTION for "+name+"! Are you sure"); err != nil {
		return err
	}
	owner, err := s.owner(repo.User)
	if err != nil {
		return err
	}

	if err = s.hooks.Run(ctx, hooks.AbortBefore, name); err != nil {
		return err
	}

	l.Debug("unmounting union", zap.String("step", "unmount"), zap.String("path", repo.UnionDir))
	if err = s.mounts.Unmount(ctx, repo.UnionDir); err != nil {
		return mountErr(err)
	}

	l.Debug("clearing temp and scratch", zap.String("step", "clear"))
	if err = s.spool.ClearAndRecreate(repo.TempDir(), owner); err != nil {
		return err
	}
	if err = s.spool.ClearAndRecreate(repo.ScratchDir(), owner); err != nil {
		return err
	}

	l.Debug("mounting union", zap.String("step", "mount"), zap.String("path", repo.UnionDir))
	if err = s.mounts.MountReadOnly(ctx, repo.UnionDir); err != nil {
		return mountErr(err)
	}

	l.Debug("removing transaction marker", zap.String("step", "unlock"))
	if err = s.transactionLock(repo).Release(); err != nil {
		return err
	}

	return s.hooks.Run(ctx, hooks.AbortAfter, name)
}
