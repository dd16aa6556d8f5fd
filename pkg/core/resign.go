package core

import (
	"context"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/storage"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Resign issues a fresh whitelist for an origin, signed with its master key
func (s *Server) Resign(ctx context.Context, name string) (err error) {
	defer func(t0 time.Time) { s.observe(OpResign, name, t0, err) }(time.Now())

	repo, err := s.loadOrigin(name)
	if err != nil {
		return err
	}
	return s.resign(ctx, repo)
}

func (s *Server) resign(ctx context.Context, repo model.Repository) error {
	cert, err := afero.ReadFile(s.fs, repo.Keys.Certificate)
	if err != nil {
		return status.ErrPrecondition.Wrapf("reading certificate of %s: %w", repo.Name, err)
	}
	fingerprint, err := whitelist.Fingerprint(cert)
	if err != nil {
		return status.ErrPrecondition.Wrapf("certificate of %s: %w", repo.Name, err)
	}

	doc := whitelist.New(repo.Name, fingerprint, s.now(), s.validity)
	signer := whitelist.NewSigner(s.fs, s.runner, repo.TempDir(), whitelist.OpenSSL(s.openssl), whitelist.SignerLogger(s.l))
	if doc, err = signer.Sign(ctx, doc, repo.Keys.MasterKey); err != nil {
		return commandErr(err)
	}

	store, err := s.openStore(s.fs, repo.Upstream)
	if err != nil {
		return status.ErrStorage.Wrap(err)
	}
	if err = storage.PutBytes(ctx, store, model.Whitelist, doc.Bytes()); err != nil {
		return status.ErrStorage.Wrap(err)
	}
	s.logger(OpResign, repo.Name).Info("whitelist signed", zap.Time("expires", doc.Expires))
	return nil
}
