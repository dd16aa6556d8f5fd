// Package upstream opens the storage backing a repository, from its upstream definition.
package upstream

import (
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/storage"
	"github.com/nc6/cvmfs/pkg/storage/localfs"
	"github.com/nc6/cvmfs/pkg/storage/status"
	"github.com/nc6/cvmfs/pkg/storage/sthree"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Opener knows how to open the storage of an upstream definition
type Opener func(afero.Fs, model.Upstream) (storage.Store, error)

// Open returns an Opener for the supported upstream types, logging with l
func Open(l *zap.Logger) Opener {
	return func(fs afero.Fs, u model.Upstream) (storage.Store, error) {
		var (
			store storage.Store
			err   error
		)
		switch u.Type {
		case model.UpstreamLocal:
			store = localfs.New(fs, u.Config, localfs.StageDir(stageDir(u)))
		case model.UpstreamS3:
			store, err = openS3(fs, u)
		default:
			return nil, status.ErrNotSupported.Wrapf("upstream type %q", u.Type)
		}
		if err != nil {
			return nil, err
		}
		return storage.Logged(l, store), nil
	}
}

func openS3(fs afero.Fs, u model.Upstream) (storage.Store, error) {
	bucket, file, err := u.S3()
	if err != nil {
		return nil, status.ErrInvalidConfig.Wrap(err)
	}
	cfg, err := sthree.LoadConfig(fs, file)
	if err != nil {
		return nil, err
	}
	return sthree.New(sthree.Bucket(bucket), sthree.AWSConfig(cfg.AWS()))
}

// stageDir expresses the temp dir of a local upstream relative to its root, when it lives there
func stageDir(u model.Upstream) string {
	root := u.Config + "/"
	if len(u.TempDir) > len(root) && u.TempDir[:len(root)] == root {
		return u.TempDir[len(root):]
	}
	return localfs.DefaultStageDir
}
