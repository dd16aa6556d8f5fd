package core

import (
	"context"
	"strings"
	"testing"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/mount"
	"github.com/nc6/cvmfs/pkg/whitelist"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkfs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.srv.Mkfs(ctx, MkfsRequest{Name: repoName, User: testOwner.Name}))

	repo, err := f.reg.Load(repoName)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrigin, repo.Role)
	assert.Equal(t, "/cvmfs/"+repoName, repo.UnionDir)
	assert.Equal(t, "/var/spool/cvmfs/"+repoName, repo.SpoolDir)
	assert.Equal(t, "http://localhost/cvmfs/"+repoName, repo.StratumURL)
	assert.Equal(t, model.LocalUpstream("/srv/cvmfs/"+repoName), repo.Upstream)
	assert.Equal(t, "sha1", repo.HashAlgorithm)

	for _, file := range []string{repo.Keys.Certificate, repo.Keys.PrivateKey, repo.Keys.MasterKey, repo.Keys.PublicKey} {
		assert.True(t, f.exists(file), file)
	}
	info, err := f.fs.Stat(repo.Keys.MasterKey)
	require.NoError(t, err)
	assert.Equal(t, "-r--------", info.Mode().Perm().String())

	for _, dir := range repo.SpoolDirs() {
		assert.True(t, f.exists(dir), dir)
	}
	assert.True(t, f.exists("/srv/cvmfs/"+repoName+"/data/ff"))
	assert.True(t, f.exists(f.reg.ClientConfig(repoName)))

	lines, err := f.srv.fstab.Entries(repoName)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	b, err := afero.ReadFile(f.fs, "/srv/cvmfs/"+repoName+"/"+model.Whitelist)
	require.NoError(t, err)
	doc, err := whitelist.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, repoName, doc.Name)
	assert.True(t, epoch.Equal(doc.Issued))
	assert.Equal(t, []byte("signature"), doc.Signature)

	for _, dir := range []string{repo.RdonlyDir(), repo.UnionDir} {
		mode, mounted := f.mounts.Mode(dir)
		assert.True(t, mounted, dir)
		assert.Equal(t, mount.ReadOnly, mode)
	}

	err = f.srv.Mkfs(ctx, MkfsRequest{Name: repoName, User: testOwner.Name})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrRepoExists))
}

func TestMkfsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.srv.Mkfs(ctx, MkfsRequest{Name: "acme", User: testOwner.Name})
	assert.True(t, errors.Is(err, status.ErrInvalidName))

	err = f.srv.Mkfs(ctx, MkfsRequest{Name: repoName, User: "nobody"})
	assert.True(t, errors.Is(err, status.ErrUsage))

	err = f.srv.Mkfs(ctx, MkfsRequest{Name: repoName, User: testOwner.Name, Upstream: "ftp"})
	assert.True(t, errors.Is(err, status.ErrUsage))

	assert.Empty(t, f.runner.Calls())
	names, err := f.reg.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMkfsKeyFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.Fail("openssl", 1, "unable to write 'random state'")

	err := f.srv.Mkfs(context.Background(), MkfsRequest{Name: repoName, User: testOwner.Name})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExternalCommand))
	assert.True(t, strings.Contains(err.Error(), "openssl"))

	exists, err := f.reg.Exists(repoName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddReplica(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(f.fs, "/etc/cvmfs/keys/mirror.pub", []byte("key"), 0444))

	err := f.srv.AddReplica(ctx, AddReplicaRequest{
		Name:      "mirror.example.org",
		User:      testOwner.Name,
		OriginURL: "http://stratum0/cvmfs/mirror.example.org",
		PublicKey: "/etc/cvmfs/keys/missing.pub",
	})
	assert.True(t, errors.Is(err, status.ErrPrecondition))

	err = f.srv.AddReplica(ctx, AddReplicaRequest{Name: "mirror.example.org", User: testOwner.Name})
	assert.True(t, errors.Is(err, status.ErrUsage))

	require.NoError(t, f.srv.AddReplica(ctx, AddReplicaRequest{
		Name:      "mirror.example.org",
		User:      testOwner.Name,
		OriginURL: "http://stratum0/cvmfs/mirror.example.org",
		PublicKey: "/etc/cvmfs/keys/mirror.pub",
		Workers:   4,
	}))
	repo, err := f.reg.Load("mirror.example.org")
	require.NoError(t, err)
	assert.Equal(t, model.RoleReplica, repo.Role)
	assert.Equal(t, 4, repo.Replica.Workers)
	assert.Equal(t, model.DefaultReplicaSettings().Retries, repo.Replica.Retries)
	assert.True(t, f.exists(repo.TempDir()))
	assert.True(t, f.exists("/srv/cvmfs/mirror.example.org/data/txn"))
	assert.Empty(t, f.mounts.Ops(), "replicas are not mounted")

	err = f.srv.AddReplica(ctx, AddReplicaRequest{
		Name:      "mirror.example.org",
		User:      testOwner.Name,
		OriginURL: "http://stratum0/cvmfs/mirror.example.org",
		PublicKey: "/etc/cvmfs/keys/mirror.pub",
	})
	assert.True(t, errors.Is(err, status.ErrRepoExists))
}
