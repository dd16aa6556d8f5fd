package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const defaultHashAlgorithm = "sha1"

// MkfsRequest describes a new origin
type MkfsRequest struct {
	Name string
	User string

	// Upstream defaults to local storage under the storage root
	Upstream string

	// StratumURL defaults to http://localhost/cvmfs/<name>
	StratumURL    string
	HashAlgorithm string
}

// Mkfs creates an origin: keys, spool area, storage, registry entry, mount entries,
// and a first empty signed revision, mounted read-only.
func (s *Server) Mkfs(ctx context.Context, req MkfsRequest) (err error) {
	defer func(t0 time.Time) { s.observe(OpMkfs, req.Name, t0, err) }(time.Now())
	l := s.logger(OpMkfs, req.Name)

	repo, owner, err := s.newOrigin(req)
	if err != nil {
		return err
	}

	l.Debug("creating spool area and storage", zap.String("step", "spool"))
	if err = s.spool.Create(repo, owner); err != nil {
		return err
	}
	if repo.Upstream.IsLocal() {
		if err = s.spool.CreateSkeleton(ctx, repo.Upstream.Config, owner); err != nil {
			return err
		}
	}
	if err = s.fs.MkdirAll(repo.UnionDir, 0755); err != nil {
		return err
	}

	l.Debug("generating keys", zap.String("step", "keys"))
	if err = s.fs.MkdirAll(s.keysDir, 0755); err != nil {
		return err
	}
	if err = whitelist.NewSigner(s.fs, s.runner, repo.TempDir(), whitelist.OpenSSL(s.openssl), whitelist.SignerLogger(s.l)).
		GenerateKeys(ctx, repo.Name, repo.Keys, owner); err != nil {
		return commandErr(err)
	}

	l.Debug("registering repository", zap.String("step", "register"))
	if err = s.registry.Create(repo); err != nil {
		return err
	}
	if err = s.registry.SaveClientConfig(repo); err != nil {
		return err
	}
	if err = s.fstab.Add(repo.Name, mount.RepositoryEntries(repo, s.registry.ClientConfig(repo.Name))...); err != nil {
		return err
	}

	l.Debug("creating first revision", zap.String("step", "create"))
	manifest, err := s.sync.Create(ctx, swissknife.CreateRequest{
		TempDir:       repo.TempDir(),
		Upstream:      repo.Upstream.String(),
		HashAlgorithm: repo.HashAlgorithm,
		Manifest:      filepath.Join(repo.TempDir(), "manifest."+ksuid.New().String()),
		User:          &owner,
	})
	if err != nil {
		return commandErr(err)
	}
	if err = s.sync.Sign(ctx, swissknife.SignRequest{
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
	if err = s.spool.ClearAndRecreate(repo.TempDir(), owner); err != nil {
		return err
	}

	l.Debug("signing whitelist", zap.String("step", "whitelist"))
	if err = s.resign(ctx, repo); err != nil {
		return err
	}

	l.Debug("mounting base and union", zap.String("step", "mount"))
	if err = s.mounts.MountReadOnly(ctx, repo.RdonlyDir()); err != nil {
		return mountErr(err)
	}
	return mountErr(s.mounts.MountReadOnly(ctx, repo.UnionDir))
}

func (s *Server) newOrigin(req MkfsRequest) (model.Repository, model.Owner, error) {
	if err := model.ValidateName(req.Name); err != nil {
		return model.Repository{}, model.Owner{}, status.ErrInvalidName.Wrap(err)
	}
	if err := s.requireUnregistered(req.Name); err != nil {
		return model.Repository{}, model.Owner{}, err
	}
	owner, err := s.owner(req.User)
	if err != nil {
		return model.Repository{}, model.Owner{}, status.ErrUsage.Wrap(err)
	}

	repo := model.Repository{
		Name:          req.Name,
		Role:          model.RoleOrigin,
		User:          owner.Name,
		UnionDir:      filepath.Join(s.unionRoot, req.Name),
		SpoolDir:      filepath.Join(s.spoolRoot, req.Name),
		StratumURL:    req.StratumURL,
		HashAlgorithm: req.HashAlgorithm,
		Keys:          model.KeysFor(s.keysDir, req.Name),
	}
	if repo.StratumURL == "" {
		repo.StratumURL = "http://localhost/cvmfs/" + req.Name
	}
	if repo.HashAlgorithm == "" {
		repo.HashAlgorithm = defaultHashAlgorithm
	}
	if repo.Upstream, err = s.upstreamFor(req.Name, req.Upstream); err != nil {
		return model.Repository{}, model.Owner{}, err
	}
	if err = model.Validate(repo); err != nil {
		return model.Repository{}, model.Owner{}, status.ErrUsage.Wrap(err)
	}
	return repo, owner, nil
}

func (s *Server) requireUnregistered(name string) error {
	exists, err := s.registry.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return status.ErrRepoExists.Wrapf("%s", name)
	}
	return nil
}

func (s *Server) upstreamFor(name, definition string) (model.Upstream, error) {
	if definition == "" {
		return model.LocalUpstream(filepath.Join(s.storageRoot, name)), nil
	}
	u, err := model.ParseUpstream(definition)
	if err != nil {
		return model.Upstream{}, status.ErrUsage.Wrap(err)
	}
	return u, nil
}
