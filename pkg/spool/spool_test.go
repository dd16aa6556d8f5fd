package spool

import (
	"context"
	"os"
	"testing"

	"github.com/nc6/cvmfs/internal/fakeexec"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = model.Owner{Name: "cvmfs", UID: 1001, GID: 1002}

func testRepo() model.Repository {
	return model.Repository{
		Name:     "acme.example.org",
		Role:     model.RoleOrigin,
		SpoolDir: "/var/spool/cvmfs/acme.example.org",
	}
}

func TestCreateAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(fs)
	repo := testRepo()

	require.NoError(t, m.Create(repo, owner))
	for _, dir := range repo.SpoolDirs() {
		exists, err := afero.DirExists(fs, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}

	require.NoError(t, m.Remove(repo))
	exists, err := afero.DirExists(fs, repo.SpoolDir)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateSkeleton(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := fakeexec.New()
	m := New(fs, Runner(runner))

	require.NoError(t, m.CreateSkeleton(context.Background(), "/srv/cvmfs/acme.example.org", owner))

	buckets, err := afero.ReadDir(fs, "/srv/cvmfs/acme.example.org/data")
	require.NoError(t, err)
	assert.Len(t, buckets, 257)
	for _, dir := range []string{"data/00", "data/7f", "data/ff", "data/txn"} {
		exists, err := afero.DirExists(fs, "/srv/cvmfs/acme.example.org/"+dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}

	assert.Equal(t, []string{"selinuxenabled", "chcon"}, runner.Names())
	assert.Equal(t, []string{"-R", "--type=httpd_sys_content_t", "/srv/cvmfs/acme.example.org"}, runner.Called("chcon")[0].Args)
}

func TestCreateSkeletonWithoutSelinux(t *testing.T) {
	for _, runner := range []*fakeexec.Runner{
		fakeexec.New().Missing("selinuxenabled"),
		fakeexec.New().Fail("selinuxenabled", 1, ""),
	} {
		require.NoError(t, New(afero.NewMemMapFs(), Runner(runner)).CreateSkeleton(context.Background(), "/srv/cvmfs/x.org", owner))
		assert.Empty(t, runner.Called("chcon"))
	}

	require.NoError(t, New(afero.NewMemMapFs()).CreateSkeleton(context.Background(), "/srv/cvmfs/x.org", owner))
}

func TestClearAndRecreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(fs)
	repo := testRepo()
	require.NoError(t, m.Create(repo, owner))
	scratch := repo.ScratchDir()
	require.NoError(t, afero.WriteFile(fs, scratch+"/hello.txt", []byte("hello"), 0644))
	require.NoError(t, fs.MkdirAll(scratch+"/sub/dir", 0755))

	size, err := m.Size(scratch)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, m.ClearAndRecreate(scratch, owner))

	entries, err := afero.ReadDir(fs, scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)

	siblings, err := afero.ReadDir(fs, repo.SpoolDir)
	require.NoError(t, err)
	names := make([]string, 0, len(siblings))
	for _, s := range siblings {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"scratch", "rdonly", "tmp", "cache", "ofs_workdir"}, names, "no leftover")

	// a missing directory is created
	require.NoError(t, fs.RemoveAll(repo.TempDir()))
	require.NoError(t, m.ClearAndRecreate(repo.TempDir(), owner))
	exists, err := afero.DirExists(fs, repo.TempDir())
	require.NoError(t, err)
	assert.True(t, exists)

	// a file is refused
	require.NoError(t, afero.WriteFile(fs, repo.SpoolDir+"/plain", []byte("x"), 0644))
	require.Error(t, m.ClearAndRecreate(repo.SpoolDir+"/plain", owner))

	size, err = m.Size(repo.SpoolDir + "/nowhere")
	require.NoError(t, err)
	assert.Zero(t, size)
	_, err = fs.Stat(repo.SpoolDir + "/nowhere")
	assert.True(t, os.IsNotExist(err))
}
