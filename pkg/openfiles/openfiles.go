// Package openfiles finds the processes holding files open under a directory.
package openfiles

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// Holder is a process using a file or a working directory under the inspected path
type Holder struct {
	PID  int
	Comm string
	Path string
}

// Finder lists the holders of a directory tree
type Finder interface {
	OpenFiles(path string) ([]Holder, error)
}

// Option for the procfs finder
type Option func(*procFinder)

// ProcRoot sets the mount point of procfs
func ProcRoot(root string) Option {
	return func(p *procFinder) {
		if root != "" {
			p.root = root
		}
	}
}

// Logger for the finder
func Logger(l *zap.Logger) Option {
	return func(p *procFinder) {
		if l != nil {
			p.l = l
		}
	}
}

// New finder scanning the open file descriptors and the working directory of all processes
func New(opts ...Option) Finder {
	p := &procFinder{
		root: procfs.DefaultMountPoint,
		l:    zap.NewNop(),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

type procFinder struct {
	root string
	l    *zap.Logger
}

func (p *procFinder) OpenFiles(path string) ([]Holder, error) {
	fs, err := procfs.NewFS(p.root)
	if err != nil {
		return nil, err
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}

	dir := filepath.Clean(path)
	var holders []Holder
	for _, proc := range procs {
		found := p.inspect(proc, dir)
		if len(found) == 0 {
			continue
		}
		comm, err := proc.Comm()
		if err != nil && !os.IsNotExist(err) {
			p.l.Debug("cannot read process name", zap.Int("pid", proc.PID), zap.Error(err))
		}
		for _, target := range found {
			holders = append(holders, Holder{PID: proc.PID, Comm: comm, Path: target})
		}
	}
	sort.SliceStable(holders, func(i, j int) bool {
		if holders[i].PID != holders[j].PID {
			return holders[i].PID < holders[j].PID
		}
		return holders[i].Path < holders[j].Path
	})
	return holders, nil
}

// inspect a process. Processes vanishing or denied to us are skipped.
func (p *procFinder) inspect(proc procfs.Proc, dir string) []string {
	var found []string
	if cwd, err := proc.Cwd(); err == nil && under(cwd, dir) {
		found = append(found, cwd)
	}
	targets, err := proc.FileDescriptorTargets()
	if err != nil {
		p.l.Debug("cannot inspect process", zap.Int("pid", proc.PID), zap.Error(err))
		return found
	}
	for _, target := range targets {
		if target != "" && under(target, dir) {
			found = append(found, target)
		}
	}
	return found
}

func under(target, dir string) bool {
	// deleted files are reported with a suffix
	target = filepath.Clean(strings.TrimSuffix(target, " (deleted)"))
	return target == dir || strings.HasPrefix(target, dir+string(filepath.Separator))
}
