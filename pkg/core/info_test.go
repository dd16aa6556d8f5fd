package core

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/metrics"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestInfo(t *testing.T) {
	f := newFixture(t)
	repo := f.origin(repoName)
	ctx := context.Background()
	require.NoError(t, f.srv.Transaction(ctx, repoName))
	f.write(filepath.Join(repo.ScratchDir(), "hello.txt"), "hello\n")

	info, err := f.srv.Info(ctx, repoName)
	require.NoError(t, err)
	assert.Equal(t, repoName, info.Name)
	assert.Equal(t, model.RoleOrigin, info.Role)
	assert.True(t, info.InTransaction)
	assert.True(t, info.Writable)
	assert.Equal(t, initialHash, info.RootHash)
	assert.Equal(t, int64(6), info.ScratchBytes)
	assert.True(t, epoch.Add(whitelist.DefaultValidity).Equal(info.WhitelistExpiry))

	require.NoError(t, f.srv.Abort(ctx, repoName, true))
	info, err = f.srv.Info(ctx, repoName)
	require.NoError(t, err)
	assert.False(t, info.InTransaction)
	assert.False(t, info.Writable)

	_, err = f.srv.Info(ctx, "unknown.example.org")
	assert.True(t, errors.Is(err, status.ErrRepoNotFound))
}

func TestInfoReplica(t *testing.T) {
	f := newFixture(t)
	repo := f.replica("mirror.example.org")
	ctx := context.Background()

	info, err := f.srv.Info(ctx, repo.Name)
	require.NoError(t, err)
	assert.True(t, info.LastSnapshot.IsZero())

	require.NoError(t, f.srv.Snapshot(ctx, repo.Name))
	info, err = f.srv.Info(ctx, repo.Name)
	require.NoError(t, err)
	assert.True(t, epoch.Equal(info.LastSnapshot))
}

func TestList(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	ctx := context.Background()
	f.origin(repoName)
	f.replica("mirror.example.org")
	f.write(filepath.Join(f.reg.Dir("broken.example.org"), "server.conf"), "CVMFS_REPOSITORY_TYPE=stratum9\n")

	infos, err := f.srv.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, repoName, infos[0].Name)
	assert.Equal(t, "broken.example.org", infos[1].Name)
	assert.Empty(t, infos[1].Role)
	assert.Equal(t, "mirror.example.org", infos[2].Name)
	assert.Equal(t, model.RoleReplica, infos[2].Role)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.srv.List(cancelled)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestListMany(t *testing.T) {
	f := newFixture(t)
	names := make([]string, 0, 2*maxParallelInfo)
	for i := 0; i < 2*maxParallelInfo; i++ {
		name := fmt.Sprintf("repo%02d.example.org", i)
		f.replica(name)
		names = append(names, name)
	}

	infos, err := f.srv.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, len(names))
	for i, info := range infos {
		assert.Equal(t, names[i], info.Name)
		assert.Equal(t, model.RoleReplica, info.Role)
	}
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	repo := f.origin(repoName)
	ctx := context.Background()
	f.knife.report = "verified 12 catalogs"

	report, err := f.srv.Check(ctx, repoName)
	require.NoError(t, err)
	assert.Equal(t, "verified 12 catalogs", report)
	require.Len(t, f.knife.checks, 1)
	assert.Equal(t, repo.Upstream.Config, f.knife.checks[0].URL)
	assert.Empty(t, f.knife.checks[0].PublicKey)

	f.knife.checkErr = assert.AnError
	_, err = f.srv.Check(ctx, repoName)
	assert.True(t, errors.Is(err, status.ErrExternalCommand))
}

func TestResign(t *testing.T) {
	f := newFixture(t)
	repo := f.origin(repoName)
	ctx := context.Background()
	later := epoch.Add(72 * time.Hour)
	f.srv.now = func() time.Time { return later }

	require.NoError(t, f.srv.Resign(ctx, repoName))
	b, err := afero.ReadFile(f.fs, filepath.Join(repo.Upstream.Config, model.Whitelist))
	require.NoError(t, err)
	doc, err := whitelist.Parse(b)
	require.NoError(t, err)
	assert.True(t, later.Equal(doc.Issued))
	assert.Len(t, f.runner.Called("openssl"), 1)

	require.NoError(t, f.fs.Remove(repo.Keys.Certificate))
	err = f.srv.Resign(ctx, repoName)
	assert.True(t, errors.Is(err, status.ErrPrecondition))
}

func TestSkeleton(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.srv.Skeleton(context.Background(), "/srv/backup", testOwner.Name))
	assert.True(t, f.exists("/srv/backup/data/00"))
	assert.True(t, f.exists("/srv/backup/data/txn"))

	err := f.srv.Skeleton(context.Background(), "", testOwner.Name)
	assert.True(t, errors.Is(err, status.ErrUsage))
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.origin(repoName)
	ctx := context.Background()
	require.NoError(t, f.srv.Transaction(ctx, repoName))
	f.answer = false
	require.Error(t, f.srv.Abort(ctx, repoName, false))

	families, err := f.metrics.Gatherer().Gather()
	require.NoError(t, err)
	outcomes := make(map[string]bool)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var op, outcome string
			for _, label := range m.GetLabel() {
				switch label.GetName() {
				case "operation":
					op = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			if outcome != "" {
				outcomes[op+"/"+outcome] = true
			}
		}
	}
	assert.True(t, outcomes[OpTransaction+"/"+metrics.OutcomeSuccess])
	assert.True(t, outcomes[OpAbort+"/"+metrics.OutcomeDeclined])
}
