// Package swissknife drives the external tool building, signing and replicating
// repository content.
//
// The state machines only see the SyncService and PullService interfaces.
package swissknife

import (
	"context"
	"strconv"
	"time"

	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/process"
	"go.uber.org/zap"
)

// SyncRequest turns the scratch layer of a frozen union mount into a new revision
type SyncRequest struct {
	UnionDir      string
	ScratchDir    string
	RdonlyDir     string
	TempDir       string
	BaseHash      string
	StratumURL    string
	Upstream      string
	HashAlgorithm string

	// Manifest is the file receiving the unsigned manifest
	Manifest string
	User     *model.Owner
}

// SignRequest signs a manifest and uploads it
type SignRequest struct {
	Manifest    string
	Certificate string
	PrivateKey  string
	Name        string
	StratumURL  string
	Upstream    string
	TempDir     string
	User        *model.Owner
}

// CreateRequest creates the first, empty revision of a repository
type CreateRequest struct {
	TempDir       string
	Upstream      string
	HashAlgorithm string
	Manifest      string
	User          *model.Owner
}

// PullRequest replicates the revisions of an origin
type PullRequest struct {
	Name        string
	OriginURL   string
	Upstream    string
	TempDir     string
	PublicKey   string
	Workers     int
	Timeout     time.Duration
	Retries     int
	Incremental bool
	User        *model.Owner
}

// CheckRequest verifies the integrity of a repository
type CheckRequest struct {
	Name      string
	URL       string
	PublicKey string
	TempDir   string
}

// SyncService publishes the content of a transaction
type SyncService interface {
	// Sync yields the path of the unsigned manifest of the new revision
	Sync(context.Context, SyncRequest) (string, error)

	// Sign the manifest of a revision with the signing key of the repository
	Sign(context.Context, SignRequest) error

	// Create the empty first revision of a repository, yielding its unsigned manifest
	Create(context.Context, CreateRequest) (string, error)
}

// PullService replicates the revisions of an origin into local storage
type PullService interface {
	Pull(context.Context, PullRequest) error
}

// Checker verifies the integrity of a repository, yielding the report of the check
type Checker interface {
	Check(context.Context, CheckRequest) (string, error)
}

// Mode of execution of the tool
type Mode int

const (
	// Normal execution
	Normal Mode = iota

	// Debug runs the debug build of the tool
	Debug

	// Debugger runs the debug build of the tool interactively, under a debugger
	Debugger
)

// Option for the swissknife
type Option func(*Swissknife)

// Binary sets the executable of the tool
func Binary(name string) Option {
	return func(s *Swissknife) {
		if name != "" {
			s.binary = name
		}
	}
}

// DebugBinary sets the executable of the debug build of the tool
func DebugBinary(name string) Option {
	return func(s *Swissknife) {
		if name != "" {
			s.debugBinary = name
		}
	}
}

// DebuggerBinary sets the debugger wrapping the tool in Debugger mode
func DebuggerBinary(name string) Option {
	return func(s *Swissknife) {
		if name != "" {
			s.debugger = name
		}
	}
}

// WithMode sets the mode of execution of the sync step
func WithMode(mode Mode) Option {
	return func(s *Swissknife) {
		s.mode = mode
	}
}

// Logger for the swissknife
func Logger(l *zap.Logger) Option {
	return func(s *Swissknife) {
		if l != nil {
			s.l = l
		}
	}
}

// Swissknife implements all services with the cvmfs_swissknife multi-call tool
type Swissknife struct {
	runner      process.Runner
	binary      string
	debugBinary string
	debugger    string
	mode        Mode
	l           *zap.Logger
}

var (
	_ SyncService = &Swissknife{}
	_ PullService = &Swissknife{}
	_ Checker     = &Swissknife{}
)

// New swissknife
func New(runner process.Runner, opts ...Option) *Swissknife {
	s := &Swissknife{
		runner:      runner,
		binary:      "cvmfs_swissknife",
		debugBinary: "cvmfs_swissknife_debug",
		debugger:    "gdb",
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// command builds the invocation of a subcommand, wrapped according to the mode
func (s *Swissknife) command(mode Mode, user *model.Owner, args ...string) process.Cmd {
	switch mode {
	case Debug:
		return process.Cmd{Name: s.debugBinary, Args: args, User: user}
	case Debugger:
		return process.Cmd{
			Name:        s.debugger,
			Args:        append([]string{"--args", s.debugBinary}, args...),
			User:        user,
			Interactive: true,
		}
	default:
		return process.Cmd{Name: s.binary, Args: args, User: user}
	}
}

func (s *Swissknife) run(ctx context.Context, cmd process.Cmd) (process.Result, error) {
	s.l.Debug("running swissknife", zap.String("command", cmd.String()))
	res, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	s.l.Debug("swissknife succeeded", zap.String("command", cmd.String()), zap.Duration("duration", res.Duration))
	return res, nil
}

// Sync runs "swissknife sync"
func (s *Swissknife) Sync(ctx context.Context, r SyncRequest) (string, error) {
	args := []string{"sync",
		"-u", r.UnionDir,
		"-s", r.ScratchDir,
		"-c", r.RdonlyDir,
		"-t", r.TempDir,
		"-b", r.BaseHash,
		"-w", r.StratumURL,
		"-r", r.Upstream,
		"-o", r.Manifest,
	}
	if r.HashAlgorithm != "" {
		args = append(args, "-e", r.HashAlgorithm)
	}
	if _, err := s.run(ctx, s.command(s.mode, r.User, args...)); err != nil {
		return "", err
	}
	return r.Manifest, nil
}

// Sign runs "swissknife sign"
func (s *Swissknife) Sign(ctx context.Context, r SignRequest) error {
	_, err := s.run(ctx, s.command(s.mode, r.User, "sign",
		"-c", r.Certificate,
		"-k", r.PrivateKey,
		"-n", r.Name,
		"-u", r.StratumURL,
		"-m", r.Manifest,
		"-t", r.TempDir,
		"-r", r.Upstream,
	))
	return err
}

// Create runs "swissknife create"
func (s *Swissknife) Create(ctx context.Context, r CreateRequest) (string, error) {
	args := []string{"create",
		"-t", r.TempDir,
		"-r", r.Upstream,
		"-o", r.Manifest,
	}
	if r.HashAlgorithm != "" {
		args = append(args, "-e", r.HashAlgorithm)
	}
	if _, err := s.run(ctx, s.command(Normal, r.User, args...)); err != nil {
		return "", err
	}
	return r.Manifest, nil
}

// Pull runs "swissknife pull". The incremental flag only fetches the revisions not yet replicated.
func (s *Swissknife) Pull(ctx context.Context, r PullRequest) error {
	args := []string{"pull",
		"-m", r.Name,
		"-u", r.OriginURL,
		"-r", r.Upstream,
		"-x", r.TempDir,
		"-k", r.PublicKey,
		"-n", strconv.Itoa(r.Workers),
		"-t", strconv.Itoa(int(r.Timeout / time.Second)),
		"-a", strconv.Itoa(r.Retries),
	}
	if r.Incremental {
		args = append(args, "-p")
	}
	_, err := s.run(ctx, s.command(Normal, r.User, args...))
	return err
}

// Check runs "swissknife check"
func (s *Swissknife) Check(ctx context.Context, r CheckRequest) (string, error) {
	args := []string{"check", "-r", r.URL}
	if r.Name != "" {
		args = append(args, "-n", r.Name)
	}
	if r.PublicKey != "" {
		args = append(args, "-k", r.PublicKey)
	}
	if r.TempDir != "" {
		args = append(args, "-t", r.TempDir)
	}
	res, err := s.run(ctx, s.command(Normal, nil, args...))
	return string(res.Output), err
}

// InMode returns a copy of the swissknife publishing in another mode of execution
func (s *Swissknife) InMode(mode Mode) SyncService {
	c := *s
	c.mode = mode
	return &c
}
