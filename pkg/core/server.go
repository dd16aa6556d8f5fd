// Package core implements the operations on repositories: the transaction state machine
// of origins (transaction, abort, publish), the replication of replicas (snapshot) and
// the management of repositories (mkfs, add-replica, rmfs, resign, info, check, list).
//
// Every operation reloads the configuration of the repository from the registry.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/hooks"
	"github.com/nc6/cvmfs/pkg/lock"
	"github.com/nc6/cvmfs/pkg/metrics"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/openfiles"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/nc6/cvmfs/pkg/registry"
	"github.com/nc6/cvmfs/pkg/spool"
	"github.com/nc6/cvmfs/pkg/storage/upstream"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Operations, as reported in logs and metrics
const (
	OpTransaction = "transaction"
	OpAbort       = "abort"
	OpPublish     = "publish"
	OpSnapshot    = "snapshot"
	OpMkfs        = "mkfs"
	OpAddReplica  = "add-replica"
	OpRmfs        = "rmfs"
	OpResign      = "resign"
	OpInfo        = "info"
	OpCheck       = "check"
	OpList        = "list"
	OpSkeleton    = "skeleton"
)

// Confirmer asks the operator to confirm a destructive operation
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface
type ConfirmFunc func(string) (bool, error)

// Confirm the question
func (f ConfirmFunc) Confirm(question string) (bool, error) {
	return f(question)
}

// Server operates the repositories hosted on this machine
type Server struct {
	settings

	fs        afero.Fs
	registry  *registry.Registry
	runner    process.Runner
	mounts    mount.Controller
	openFiles openfiles.Finder
	sync      swissknife.SyncService
	pull      swissknife.PullService
	checker   swissknife.Checker
	spool     *spool.Manager
	hooks     *hooks.Runner
	fstab     *mount.Fstab
	openStore upstream.Opener
	confirmer Confirmer
	owner     func(string) (model.Owner, error)
	metrics   *metrics.Metrics
	now       func() time.Time
	l         *zap.Logger
}

type settings struct {
	keysDir     string
	spoolRoot   string
	unionRoot   string
	storageRoot string
	hooksDir    string
	fstabPath   string
	openssl     string
	validity    time.Duration
}

// New server on the repositories of a registry
func New(fs afero.Fs, reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		settings: settings{
			keysDir:     "/etc/cvmfs/keys",
			spoolRoot:   "/var/spool/cvmfs",
			unionRoot:   "/cvmfs",
			storageRoot: "/srv/cvmfs",
			fstabPath:   "/etc/fstab",
			openssl:     "openssl",
			validity:    whitelist.DefaultValidity,
		},
		fs:       fs,
		registry: reg,
		owner:    model.LookupOwner,
		now:      time.Now,
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}

	if s.runner == nil {
		s.runner = process.New(process.Logger(s.l))
	}
	if s.mounts == nil {
		s.mounts = mount.New(s.runner, mount.Logger(s.l))
	}
	if s.openFiles == nil {
		s.openFiles = openfiles.New(openfiles.Logger(s.l))
	}
	if s.sync == nil || s.pull == nil || s.checker == nil {
		knife := swissknife.New(s.runner, swissknife.Logger(s.l))
		if s.sync == nil {
			s.sync = knife
		}
		if s.pull == nil {
			s.pull = knife
		}
		if s.checker == nil {
			s.checker = knife
		}
	}
	if s.openStore == nil {
		s.openStore = upstream.Open(s.l)
	}
	s.spool = spool.New(fs, spool.Runner(s.runner), spool.Logger(s.l))
	s.hooks = hooks.New(fs, s.hooksDir, s.runner, hooks.Logger(s.l))
	s.fstab = mount.NewFstab(fs, s.fstabPath)
	return s
}

func (s *Server) logger(op, name string) *zap.Logger {
	return s.l.With(zap.String("operation", op), zap.String("repo", name))
}

// observe reports the outcome of an operation to the metrics
func (s *Server) observe(op, name string, start time.Time, err error) {
	s.metrics.Observe(op, name, start, err)
	if err != nil && !errors.Is(err, status.ErrConfirmationDeclined) {
		s.logger(op, name).Error("operation failed", zap.Error(err))
	}
}

// Classify the outcome of a failed operation, for metrics
func Classify(err error) string {
	if errors.Is(err, status.ErrConfirmationDeclined) {
		return metrics.OutcomeDeclined
	}
	return metrics.OutcomeFailure
}

// load reads the configuration of a repository afresh
func (s *Server) load(name string) (model.Repository, error) {
	if err := model.ValidateName(name); err != nil {
		return model.Repository{}, status.ErrInvalidName.Wrap(err)
	}
	repo, err := s.registry.Load(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return model.Repository{}, status.ErrRepoNotFound.Wrapf("%s", name)
		}
		return model.Repository{}, err
	}
	return repo, nil
}

func (s *Server) loadOrigin(name string) (model.Repository, error) {
	repo, err := s.load(name)
	if err != nil {
		return repo, err
	}
	if !repo.IsOrigin() {
		return repo, status.ErrWrongRole.Wrapf("%s is a %s", name, repo.Role.Label())
	}
	return repo, nil
}

func (s *Server) loadReplica(name string) (model.Repository, error) {
	repo, err := s.load(name)
	if err != nil {
		return repo, err
	}
	if !repo.IsReplica() {
		return repo, status.ErrWrongRole.Wrapf("%s is an %s", name, repo.Role.Label())
	}
	return repo, nil
}

func (s *Server) transactionLock(repo model.Repository) *lock.Lock {
	return lock.New(s.fs, repo.TransactionMarker())
}

func (s *Server) snapshotMarker(repo model.Repository) *lock.Timestamp {
	return lock.NewTimestamp(s.fs, repo.LastSnapshotMarker())
}

// requireTransaction checks that a transaction is open
func (s *Server) requireTransaction(repo model.Repository) error {
	held, err := s.transactionLock(repo).Held()
	if err != nil {
		return err
	}
	if !held {
		return status.ErrNotInTransaction.Wrapf("%s", repo.Name)
	}
	return nil
}

// requireIdle checks that no process holds files open in the union mount
func (s *Server) requireIdle(repo model.Repository) error {
	holders, err := s.openFiles.OpenFiles(repo.UnionDir)
	if err != nil {
		return fmt.Errorf("listing open files under %s: %w", repo.UnionDir, err)
	}
	if len(holders) == 0 {
		return nil
	}
	descriptions := make([]string, 0, len(holders))
	for _, h := range holders {
		descriptions = append(descriptions, fmt.Sprintf("%s[%d] %s", h.Comm, h.PID, h.Path))
	}
	return status.ErrResourceBusy.Wrapf("%s is in use: %s", repo.UnionDir, strings.Join(descriptions, ", "))
}

// confirm a destructive operation, unless forced
func (s *Server) confirm(force bool, question string) error {
	if force {
		return nil
	}
	if s.confirmer == nil {
		return status.ErrConfirmationRequired
	}
	ok, err := s.confirmer.Confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		return status.ErrConfirmationDeclined
	}
	return nil
}

func mountErr(err error) error {
	if err == nil {
		return nil
	}
	return status.ErrMount.Wrap(err)
}

func commandErr(err error) error {
	if err == nil {
		return nil
	}
	return status.ErrExternalCommand.Wrap(err)
}
