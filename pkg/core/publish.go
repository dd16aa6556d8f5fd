package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nc6/cvmfs/pkg/hooks"
	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

type modal interface {
	InMode(swissknife.Mode) swissknife.SyncService
}

// Publish folds the changes of the open transaction of an origin into a new signed revision.
//
// The union mount is frozen read-only before the sync step reads the scratch layer.
// When the sync or sign step fails, the repository stays read-only and in transaction, so
// that the operator may retry or abort.
func (s *Server) Publish(ctx context.Context, name string, mode swissknife.Mode) (err error) {
	defer func(t0 time.Time) { s.observe(OpPublish, name, t0, err) }(time.Now())
	l := s.logger(OpPublish, name)

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
	owner, err := s.owner(repo.User)
	if err != nil {
		return err
	}

	sync := s.sync
	if mode != swissknife.Normal {
		if m, ok := sync.(modal); ok {
			sync = m.InMode(mode)
		} else {
			l.Warn("debug mode is not supported by this sync service")
		}
	}

	if err = s.hooks.Run(ctx, hooks.PublishBefore, name); err != nil {
		return err
	}

	l.Debug("freezing union", zap.String("step", "remount"), zap.String("path", repo.UnionDir))
	if err = s.mounts.Remount(ctx, repo.UnionDir, mount.ReadOnly); err != nil {
		return mountErr(err)
	}

	baseHash, err := s.mounts.RootHash(repo.RdonlyDir())
	if err != nil {
		return mountErr(err)
	}
	l.Debug("syncing scratch", zap.String("step", "sync"), zap.String("base_hash", baseHash))

	manifest, err := sync.Sync(ctx, swissknife.SyncRequest{
		UnionDir:      repo.UnionDir,
		ScratchDir:    repo.ScratchDir(),
		RdonlyDir:     repo.RdonlyDir(),
		TempDir:       repo.TempDir(),
		BaseHash:      baseHash,
		StratumURL:    repo.StratumURL,
		Upstream:      repo.Upstream.String(),
		HashAlgorithm: repo.HashAlgorithm,
		Manifest:      filepath.Join(repo.TempDir(), "manifest."+ksuid.New().String()),
		User:          &owner,
	})
	if err != nil {
		return commandErr(err)
	}

	l.Debug("signing manifest", zap.String("step", "sign"), zap.String("manifest", manifest))
	if err = sync.Sign(ctx, swissknife.SignRequest{
		Manifest:    manifest,
		Certificate: repo.Keys.Certificate,
		PrivateKey:  repo.Keys.PrivateKey,
		Name:        repo.Name,
		StratumURL:  repo.StratumURL,
		Upstream:    repo.Upstream.String(),
		TempDir:     repo.TempDir(),
		User:        &owner,
	}); err != nil {
		return commandErr(err)
	}

	l.Debug("unmounting union and base", zap.String("step", "unmount"))
	if err = s.mounts.Unmount(ctx, repo.UnionDir); err != nil {
		return mountErr(err)
	}
	if err = s.mounts.Unmount(ctx, repo.RdonlyDir()); err != nil {
		return mountErr(err)
	}

	l.Debug("clearing scratch and temp", zap.String("step", "clear"))
	if err = s.spool.ClearAndRecreate(repo.ScratchDir(), owner); err != nil {
		return err
	}
	if err = s.spool.ClearAndRecreate(repo.TempDir(), owner); err != nil {
		return err
	}

	l.Debug("mounting base and union", zap.String("step", "mount"))
	if err = s.mounts.MountReadOnly(ctx, repo.RdonlyDir()); err != nil {
		return mountErr(err)
	}
	if err = s.mounts.MountReadOnly(ctx, repo.UnionDir); err != nil {
		return mountErr(err)
	}

	l.Debug("removing transaction marker", zap.String("step", "unlock"))
	if err = s.transactionLock(repo).Release(); err != nil {
		return err
	}

	return s.hooks.Run(ctx, hooks.PublishAfter, name)
}
