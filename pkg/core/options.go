package core

import (
	"time"

	"github.com/nc6/cvmfs/pkg/metrics"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/openfiles"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/nc6/cvmfs/pkg/storage/upstream"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"go.uber.org/zap"
)

// Option is a functor to build a server with some options
type Option func(*Server)

// Logger injects a logging facility into core operations
func Logger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// Runner runs external commands
func Runner(r process.Runner) Option {
	return func(s *Server) {
		s.runner = r
	}
}

// Mounts drives the mount table
func Mounts(m mount.Controller) Option {
	return func(s *Server) {
		s.mounts = m
	}
}

// OpenFiles finds the processes using a repository
func OpenFiles(f openfiles.Finder) Option {
	return func(s *Server) {
		s.openFiles = f
	}
}

// Sync publishes transactions
func Sync(svc swissknife.SyncService) Option {
	return func(s *Server) {
		s.sync = svc
	}
}

// Pull replicates origins
func Pull(svc swissknife.PullService) Option {
	return func(s *Server) {
		s.pull = svc
	}
}

// Checker verifies repositories
func Checker(c swissknife.Checker) Option {
	return func(s *Server) {
		s.checker = c
	}
}

// StoreOpener opens upstream storage
func StoreOpener(o upstream.Opener) Option {
	return func(s *Server) {
		s.openStore = o
	}
}

// Confirm destructive operations with c. Without a confirmer, they require to be forced.
func Confirm(c Confirmer) Option {
	return func(s *Server) {
		s.confirmer = c
	}
}

// OwnerLookup resolves user names
func OwnerLookup(lookup func(string) (model.Owner, error)) Option {
	return func(s *Server) {
		if lookup != nil {
			s.owner = lookup
		}
	}
}

// Metrics records the outcome of operations
func Metrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Clock sets the time source
func Clock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// KeysDir holds the keys of the repositories
func KeysDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.keysDir = dir
		}
	}
}

// SpoolRoot holds the spool areas of new repositories
func SpoolRoot(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.spoolRoot = dir
		}
	}
}

// UnionRoot holds the union mounts of new repositories
func UnionRoot(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.unionRoot = dir
		}
	}
}

// StorageRoot holds the local storage of new repositories
func StorageRoot(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.storageRoot = dir
		}
	}
}

// HooksDir holds the hooks. An empty dir disables hooks.
func HooksDir(dir string) Option {
	return func(s *Server) {
		s.hooksDir = dir
	}
}

// Fstab is the fstab file receiving the mount entries of origins
func Fstab(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.fstabPath = path
		}
	}
}

// OpenSSL sets the openssl executable
func OpenSSL(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.openssl = name
		}
	}
}

// WhitelistValidity sets the validity of new whitelists
func WhitelistValidity(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.validity = d
		}
	}
}
