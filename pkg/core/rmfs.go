package core

import (
	"context"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Rmfs removes a repository from this host: mounts, storage, spool area, keys and
// configuration.
//
// An origin in transaction is removed only when forced.
func (s *Server) Rmfs(ctx context.Context, name string, force bool) (err error) {
	defer func(t0 time.Time) { s.observe(OpRmfs, name, t0, err) }(time.Now())
	l := s.logger(OpRmfs, name)

	repo, err := s.load(name)
	if err != nil {
		return err
	}
	if repo.IsOrigin() {
		var held bool
		if held, err = s.transactionLock(repo).Held(); err != nil {
			return err
		}
		if held && !force {
			return status.ErrAlreadyInTransaction.Wrapf("%s: abort or publish first, or use -f", name)
		}
		if err = s.requireIdle(repo); err != nil {
			return err
		}
	}
	if err = s.confirm(force, "You are about to WIPE OUT THE WHOLE REPOSITORY INCLUDING SIGNING KEYS for "+name+"! Are you sure"); err != nil {
		return err
	}

	if repo.IsOrigin() {
		l.Debug("unmounting union and base", zap.String("step", "unmount"))
		for _, dir := range []string{repo.UnionDir, repo.RdonlyDir()} {
			if err = s.unmountIfMounted(ctx, dir); err != nil {
				return err
			}
		}
		if err = s.fstab.Remove(name); err != nil {
			return err
		}
	}

	if err = s.wipeStorage(ctx, l, repo); err != nil {
		return err
	}

	l.Debug("removing spool area", zap.String("step", "spool"))
	if err = s.spool.Remove(repo); err != nil {
		return err
	}
	if repo.IsOrigin() {
		if err = s.removeKeys(repo.Keys); err != nil {
			return err
		}
	}

	l.Debug("unregistering repository", zap.String("step", "register"))
	return s.registry.Remove(name)
}

func (s *Server) unmountIfMounted(ctx context.Context, dir string) error {
	mounted, err := s.mounts.Mounted(dir)
	if err != nil {
		return mountErr(err)
	}
	if !mounted {
		return nil
	}
	return mountErr(s.mounts.Unmount(ctx, dir))
}

// wipeStorage withdraws the published manifest first: an interrupted wipe leaves
// nothing servable.
func (s *Server) wipeStorage(ctx context.Context, l *zap.Logger, repo model.Repository) error {
	store, err := s.openStore(s.fs, repo.Upstream)
	if err != nil {
		return status.ErrStorage.Wrap(err)
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return status.ErrStorage.Wrap(err)
	}
	l.Info("wiping upstream storage", zap.String("step", "storage"), zap.String("storage", store.String()), zap.Int("objects", len(keys)))
	if err = store.Delete(ctx, model.PublishedManifest); err != nil {
		return status.ErrStorage.Wrap(err)
	}
	if err = store.Clear(ctx); err != nil {
		return status.ErrStorage.Wrap(err)
	}
	if repo.Upstream.IsLocal() {
		if err = s.fs.RemoveAll(repo.Upstream.Config); err != nil {
			return status.ErrStorage.Wrap(err)
		}
	}
	return nil
}

func (s *Server) removeKeys(keys model.Keys) error {
	for _, file := range []string{keys.Certificate, keys.PrivateKey, keys.MasterKey, keys.PublicKey} {
		if file == "" {
			continue
		}
		found, err := afero.Exists(s.fs, file)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err = s.fs.Remove(file); err != nil {
			return err
		}
	}
	return nil
}
