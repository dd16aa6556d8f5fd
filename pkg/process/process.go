// Package process runs the external tools driven by cvmfs-server.
//
// All subprocesses go through the Runner interface, so that the state machines
// can be tested with a recording fake and no real process.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/nc6/cvmfs/pkg/model"
	"go.uber.org/zap"
)

// Cmd describes a command to run
type Cmd struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	// User runs the command with the credentials of this account, when the caller is root
	User *model.Owner

	// Interactive attaches the standard streams of the caller, e.g. to run a debugger.
	// The output is not captured.
	Interactive bool
}

// Command line as a slice, the name first
func (c Cmd) Command() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the literal command line
func (c Cmd) String() string {
	return CommandLine(c.Command())
}

// Result of a successful command
type Result struct {
	Command  []string
	Output   []byte
	Duration time.Duration
}

// Runner knows how to run external commands
type Runner interface {
	// Run a command to completion. A command exiting with a non-zero status yields a *CommandError.
	Run(context.Context, Cmd) (Result, error)

	// LookPath resolves an executable in PATH
	LookPath(string) (string, error)
}

// Option for the default runner
type Option func(*execRunner)

// Logger sets the logger of the runner
func Logger(l *zap.Logger) Option {
	return func(r *execRunner) {
		if l != nil {
			r.l = l
		}
	}
}

// Stdio overrides the streams attached to interactive commands
func Stdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *execRunner) {
		r.stdin, r.stdout, r.stderr = stdin, stdout, stderr
	}
}

// New runner executing real processes
func New(opts ...Option) Runner {
	r := &execRunner{
		l:      zap.NewNop(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

type execRunner struct {
	l      *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (r *execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *execRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	command := c.Command()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...) // #nosec G204
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.User != nil && os.Geteuid() == 0 && c.User.UID != 0 {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Credential: &syscall.Credential{Uid: uint32(c.User.UID), Gid: uint32(c.User.GID)},
		}
	}

	var output bytes.Buffer
	if c.Interactive {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = r.stdin, r.stdout, r.stderr
	} else {
		cmd.Stdout = &output
		cmd.Stderr = &output
	}

	r.l.Debug("running command", zap.String("command", c.String()))
	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  command,
		Output:   output.Bytes(),
		Duration: time.Since(start),
	}
	if err != nil {
		cerr := &CommandError{
			Command:  command,
			Output:   output.String(),
			ExitCode: -1,
			Err:      err,
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			cerr.ExitCode = exitErr.ExitCode()
		}
		r.l.Debug("command failed", zap.String("command", c.String()), zap.Int("exit_code", cerr.ExitCode), zap.Error(err))
		return res, cerr
	}
	r.l.Debug("command succeeded", zap.String("command", c.String()), zap.Duration("duration", res.Duration))
	return res, nil
}

// CommandError reports a failed external command, with its literal command line and captured output
type CommandError struct {
	Command  []string
	Output   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, CommandLine(e.Command))
	}
	return fmt.Sprintf("command failed: %s: %v", CommandLine(e.Command), e.Err)
}

// Unwrap the underlying exec error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine renders a command as it would be typed in a shell
func CommandLine(command []string) string {
	quoted := make([]string, len(command))
	for i, arg := range command {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`|&;<>()*?[]#~!{}") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
