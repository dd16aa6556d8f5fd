package core

import (
	"context"
	"sort"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/storage"
	storagestatus "github.com/nc6/cvmfs/pkg/storage/status"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Info collects the state of a repository.
//
// Missing details, such as the whitelist of a never published origin, are left empty.
func (s *Server) Info(ctx context.Context, name string) (info model.Info, err error) {
	defer func(t0 time.Time) { s.observe(OpInfo, name, t0, err) }(time.Now())

	repo, err := s.load(name)
	if err != nil {
		return model.Info{}, err
	}
	return s.info(ctx, repo), nil
}

func (s *Server) info(ctx context.Context, repo model.Repository) model.Info {
	l := s.logger(OpInfo, repo.Name)
	info := model.Info{
		Name:       repo.Name,
		Role:       repo.Role,
		User:       repo.User,
		StratumURL: repo.StratumURL,
		Upstream:   repo.Upstream.String(),
		UnionDir:   repo.UnionDir,
	}

	if repo.IsReplica() {
		last, ok, err := s.snapshotMarker(repo).Read()
		if err != nil {
			l.Warn("cannot read last snapshot", zap.Error(err))
		} else if ok {
			info.LastSnapshot = last
		}
		return info
	}

	held, err := s.transactionLock(repo).Held()
	if err != nil {
		l.Warn("cannot read transaction state", zap.Error(err))
	}
	info.InTransaction = held

	if mounted, err := s.mounts.Mounted(repo.UnionDir); err == nil && mounted {
		if info.Writable, err = s.mounts.Writable(repo.UnionDir); err != nil {
			l.Warn("cannot read mount mode", zap.Error(err))
		}
	}
	if mounted, err := s.mounts.Mounted(repo.RdonlyDir()); err == nil && mounted {
		if info.RootHash, err = s.mounts.RootHash(repo.RdonlyDir()); err != nil {
			l.Warn("cannot read root hash", zap.Error(err))
		}
	}
	if info.ScratchBytes, err = s.spool.Size(repo.ScratchDir()); err != nil {
		l.Warn("cannot measure scratch area", zap.Error(err))
	}
	if info.WhitelistExpiry, err = s.whitelistExpiry(ctx, repo); err != nil {
		l.Warn("cannot read whitelist", zap.Error(err))
	}
	return info
}

func (s *Server) whitelistExpiry(ctx context.Context, repo model.Repository) (time.Time, error) {
	store, err := s.openStore(s.fs, repo.Upstream)
	if err != nil {
		return time.Time{}, err
	}
	b, err := storage.ReadAll(ctx, store, model.Whitelist)
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	doc, err := whitelist.Parse(b)
	if err != nil {
		return time.Time{}, err
	}
	return doc.Expires, nil
}

// maxParallelInfo bounds the repositories inspected at once by List
const maxParallelInfo = 8

// List the repositories hosted on this machine, sorted by name.
//
// A repository with a broken configuration is listed by name only.
func (s *Server) List(ctx context.Context) (infos model.Infos, err error) {
	defer func(t0 time.Time) { s.observe(OpList, "", t0, err) }(time.Now())

	names, err := s.registry.List()
	if err != nil {
		return nil, err
	}
	infos = make(model.Infos, len(names))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelInfo)
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			repo, loadErr := s.registry.Load(name)
			if loadErr != nil {
				s.logger(OpList, name).Warn("cannot load repository", zap.Error(loadErr))
				infos[i] = model.Info{Name: name}
				return nil
			}
			infos[i] = s.info(gctx, repo)
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return nil, err
	}
	sort.Sort(infos)
	return infos, nil
}

// Check verifies the integrity of the published content of a repository
func (s *Server) Check(ctx context.Context, name string) (report string, err error) {
	defer func(t0 time.Time) { s.observe(OpCheck, name, t0, err) }(time.Now())

	repo, err := s.load(name)
	if err != nil {
		return "", err
	}
	url := repo.StratumURL
	if repo.Upstream.IsLocal() {
		url = repo.Upstream.Config
	}
	req := swissknife.CheckRequest{
		Name:    repo.Name,
		URL:     url,
		TempDir: repo.TempDir(),
	}
	if repo.IsReplica() {
		req.PublicKey = repo.Keys.PublicKey
	}
	report, err = s.checker.Check(ctx, req)
	if err != nil {
		return report, commandErr(err)
	}
	return report, nil
}

// Skeleton creates the directory layout of a local storage in dir, owned by user
func (s *Server) Skeleton(ctx context.Context, dir, user string) (err error) {
	defer func(t0 time.Time) { s.observe(OpSkeleton, "", t0, err) }(time.Now())

	if dir == "" {
		return status.ErrUsage.Wrapf("a directory is required")
	}
	owner, err := s.owner(user)
	if err != nil {
		return status.ErrUsage.Wrap(err)
	}
	return s.spool.CreateSkeleton(ctx, dir, owner)
}
