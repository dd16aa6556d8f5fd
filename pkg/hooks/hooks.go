// Package hooks runs the operator scripts bracketing repository operations.
//
// A hook is an executable named after the event in the hooks directory, e.g.
// /etc/cvmfs/hooks/publish_before_hook. It is called with the repository name as
// its only argument. A missing hook is not an error, a failing hook is.
package hooks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Hook names an event
type Hook string

// Hooks known to cvmfs-server
const (
	TransactionBefore Hook = "transaction_before_hook"
	TransactionAfter  Hook = "transaction_after_hook"
	AbortBefore       Hook = "abort_before_hook"
	AbortAfter        Hook = "abort_after_hook"
	PublishBefore     Hook = "publish_before_hook"
	PublishAfter      Hook = "publish_after_hook"
)

// ErrHookFailed is returned when a hook exits with an error
var ErrHookFailed = errors.New("hook failed")

// Runner of hooks
type Runner struct {
	fs     afero.Fs
	dir    string
	runner process.Runner
	l      *zap.Logger
}

// Option for the hook runner
type Option func(*Runner)

// Logger for the hook runner
func Logger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.l = l
		}
	}
}

// New hook runner for the hooks in dir. An empty dir disables hooks.
func New(fs afero.Fs, dir string, runner process.Runner, opts ...Option) *Runner {
	r := &Runner{
		fs:     fs,
		dir:    dir,
		runner: runner,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Run a hook for a repository, when it is installed
func (r *Runner) Run(ctx context.Context, hook Hook, repo string) error {
	if r == nil || r.dir == "" {
		return nil
	}
	path := filepath.Join(r.dir, string(hook))
	info, err := r.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrHookFailed.Wrap(err)
	}
	if info.IsDir() {
		return nil
	}
	if info.Mode().Perm()&0111 == 0 {
		r.l.Warn("ignoring hook which is not executable", zap.String("hook", path))
		return nil
	}

	r.l.Debug("running hook", zap.String("hook", string(hook)), zap.String("repo", repo))
	if _, err := r.runner.Run(ctx, process.Cmd{Name: path, Args: []string{repo}}); err != nil {
		return ErrHookFailed.Wrapf("%s: %w", hook, err)
	}
	return nil
}
