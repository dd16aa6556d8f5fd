// Package fakeexec provides a recording process runner for tests.
package fakeexec

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nc6/cvmfs/pkg/process"
)

// Handler simulates a command. A non-zero exit code makes the command fail.
type Handler func(process.Cmd) (output string, exitCode int)

// Runner records every command and replies with registered handlers.
// Commands without a handler succeed with no output.
type Runner struct {
	mx       sync.Mutex
	calls    []process.Cmd
	handlers map[string]Handler
	missing  map[string]bool
}

var _ process.Runner = &Runner{}

// New fake runner
func New() *Runner {
	return &Runner{
		handlers: make(map[string]Handler),
		missing:  make(map[string]bool),
	}
}

// On registers a handler for a command, by base name
func (r *Runner) On(name string, h Handler) *Runner {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.handlers[name] = h
	return r
}

// Fail makes a command exit with code and output
func (r *Runner) Fail(name string, code int, output string) *Runner {
	return r.On(name, func(process.Cmd) (string, int) { return output, code })
}

// Succeed makes a command succeed with output
func (r *Runner) Succeed(name, output string) *Runner {
	return r.On(name, func(process.Cmd) (string, int) { return output, 0 })
}

// Missing makes LookPath fail for name
func (r *Runner) Missing(name string) *Runner {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.missing[name] = true
	return r
}

// LookPath resolves any command not declared missing
func (r *Runner) LookPath(name string) (string, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return filepath.Join("/usr/bin", filepath.Base(name)), nil
}

// Run records the command and simulates it
func (r *Runner) Run(ctx context.Context, c process.Cmd) (process.Result, error) {
	r.mx.Lock()
	r.calls = append(r.calls, c)
	h, ok := r.handlers[filepath.Base(c.Name)]
	missing := r.missing[c.Name]
	r.mx.Unlock()

	res := process.Result{Command: c.Command()}
	if err := ctx.Err(); err != nil {
		return res, &process.CommandError{Command: c.Command(), ExitCode: -1, Err: err}
	}
	if missing {
		return res, &process.CommandError{Command: c.Command(), ExitCode: -1, Err: errors.New("executable file not found")}
	}
	if !ok {
		return res, nil
	}
	output, code := h(c)
	res.Output = []byte(output)
	if code != 0 {
		return res, &process.CommandError{
			Command:  c.Command(),
			Output:   output,
			ExitCode: code,
			Err:      fmt.Errorf("exit status %d", code),
		}
	}
	return res, nil
}

// Calls returns the recorded commands
func (r *Runner) Calls() []process.Cmd {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]process.Cmd(nil), r.calls...)
}

// Called returns the recorded invocations of a command, by base name
func (r *Runner) Called(name string) []process.Cmd {
	r.mx.Lock()
	defer r.mx.Unlock()
	var res []process.Cmd
	for _, c := range r.calls {
		if filepath.Base(c.Name) == name {
			res = append(res, c)
		}
	}
	return res
}

// Names returns the base names of the recorded commands, in order.
// Subcommands of multi-call tools are appended, e.g. "cvmfs_swissknife sync".
func (r *Runner) Names() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	res := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		name := filepath.Base(c.Name)
		if len(c.Args) > 0 && len(c.Args[0]) > 0 && c.Args[0][0] != '-' && !filepath.IsAbs(c.Args[0]) {
			name += " " + c.Args[0]
		}
		res = append(res, name)
	}
	return res
}

// Reset forgets the recorded commands
func (r *Runner) Reset() {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.calls = nil
}
