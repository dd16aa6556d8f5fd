package core

import (
	"context"
	"time"

	"github.com/nc6/cvmfs/pkg/swissknife"
	"go.uber.org/zap"
)

// Snapshot pulls the new revisions of the origin of a replica.
//
// The first snapshot fetches the whole history. Later ones are incremental. Snapshots are
// idempotent: a failed snapshot is resumed by the next one.
func (s *Server) Snapshot(ctx context.Context, name string) (err error) {
	defer func(t0 time.Time) { s.observe(OpSnapshot, name, t0, err) }(time.Now())
	l := s.logger(OpSnapshot, name)

	repo, err := s.loadReplica(name)
	if err != nil {
		return err
	}
	owner, err := s.owner(repo.User)
	if err != nil {
		return err
	}
	marker := s.snapshotMarker(repo)
	incremental, err := marker.Exists()
	if err != nil {
		return err
	}

	l.Debug("pulling origin", zap.String("step", "pull"), zap.String("origin", repo.StratumURL), zap.Bool("incremental", incremental))
	if err = s.pull.Pull(ctx, swissknife.PullRequest{
		Name:        repo.Name,
		OriginURL:   repo.StratumURL,
		Upstream:    repo.Upstream.String(),
		TempDir:     repo.TempDir(),
		PublicKey:   repo.Keys.PublicKey,
		Workers:     repo.Replica.Workers,
		Timeout:     repo.Replica.Timeout,
		Retries:     repo.Replica.Retries,
		Incremental: incremental,
		User:        &owner,
	}); err != nil {
		return commandErr(err)
	}

	return marker.Touch(s.now())
}
