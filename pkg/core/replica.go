package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// AddReplicaRequest describes a new replica
type AddReplicaRequest struct {
	Name      string
	User      string
	OriginURL string
	PublicKey string

	// Upstream defaults to local storage under the storage root
	Upstream string

	// Zero values fall back to the default replica settings
	Workers int
	Timeout time.Duration
	Retries int
}

// AddReplica registers a replica of an origin. Nothing is pulled until the first snapshot.
func (s *Server) AddReplica(ctx context.Context, req AddReplicaRequest) (err error) {
	defer func(t0 time.Time) { s.observe(OpAddReplica, req.Name, t0, err) }(time.Now())
	l := s.logger(OpAddReplica, req.Name)

	if err = model.ValidateName(req.Name); err != nil {
		return status.ErrInvalidName.Wrap(err)
	}
	if req.OriginURL == "" {
		return status.ErrUsage.Wrapf("the URL of the origin is required")
	}
	if req.PublicKey == "" {
		return status.ErrUsage.Wrapf("the public key of the origin is required")
	}
	if err = s.requireUnregistered(req.Name); err != nil {
		return err
	}
	found, err := afero.Exists(s.fs, req.PublicKey)
	if err != nil {
		return err
	}
	if !found {
		return status.ErrPrecondition.Wrapf("public key %s not found", req.PublicKey)
	}
	owner, err := s.owner(req.User)
	if err != nil {
		return status.ErrUsage.Wrap(err)
	}

	settings := model.DefaultReplicaSettings()
	if req.Workers > 0 {
		settings.Workers = req.Workers
	}
	if req.Timeout > 0 {
		settings.Timeout = req.Timeout
	}
	if req.Retries > 0 {
		settings.Retries = req.Retries
	}
	repo := model.Repository{
		Name:       req.Name,
		Role:       model.RoleReplica,
		User:       owner.Name,
		SpoolDir:   filepath.Join(s.spoolRoot, req.Name),
		StratumURL: req.OriginURL,
		Keys:       model.Keys{PublicKey: req.PublicKey},
		Replica:    settings,
	}
	if repo.Upstream, err = s.upstreamFor(req.Name, req.Upstream); err != nil {
		return err
	}
	if err = model.Validate(repo); err != nil {
		return status.ErrUsage.Wrap(err)
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

	l.Debug("registering replica", zap.String("step", "register"))
	return s.registry.Create(repo)
}
