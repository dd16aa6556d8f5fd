package registry

import (
	"testing"
	"time"

	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "/etc/cvmfs/repositories.d"

func testOrigin() model.Repository {
	return model.Repository{
		Name:          "acme.example.org",
		Role:          model.RoleOrigin,
		User:          "acme",
		UnionDir:      "/cvmfs/acme.example.org",
		SpoolDir:      "/var/spool/cvmfs/acme.example.org",
		StratumURL:    "http://localhost/cvmfs/acme.example.org",
		Upstream:      model.LocalUpstream("/srv/cvmfs/acme.example.org"),
		HashAlgorithm: "sha1",
	}
}

func testReplica() model.Repository {
	return model.Repository{
		Name:       "mirror.example.org",
		Role:       model.RoleReplica,
		User:       "root",
		SpoolDir:   "/var/spool/cvmfs/mirror.example.org",
		StratumURL: "http://origin.example.org/cvmfs/mirror.example.org",
		Upstream:   model.LocalUpstream("/srv/cvmfs/mirror.example.org"),
		Keys:       model.Keys{PublicKey: "/etc/cvmfs/keys/example.org.pub"},
		Replica: model.ReplicaSettings{
			Workers: 4,
			Timeout: 30 * time.Second,
			Retries: 5,
		},
	}
}

func TestCreateLoadOrigin(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testDir, KeysDir("/etc/cvmfs/keys"))

	origin := testOrigin()
	require.NoError(t, r.Create(origin))

	content, err := afero.ReadFile(fs, testDir+"/acme.example.org/server.conf")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CVMFS_REPOSITORY_TYPE=stratum0\n")
	assert.Contains(t, string(content), "CVMFS_UPSTREAM_STORAGE=local,/srv/cvmfs/acme.example.org/data/txn,/srv/cvmfs/acme.example.org\n")

	loaded, err := r.Load("acme.example.org")
	require.NoError(t, err)
	expected := origin
	expected.Keys = model.KeysFor("/etc/cvmfs/keys", "acme.example.org")
	assert.Equal(t, expected, loaded)

	err = r.Create(origin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegistered))
}

func TestCreateLoadReplica(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testDir)

	replica := testReplica()
	require.NoError(t, r.Create(replica))

	ok, err := afero.Exists(fs, testDir+"/mirror.example.org/replica.conf")
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := r.Load("mirror.example.org")
	require.NoError(t, err)
	assert.Equal(t, replica, loaded)
}

func TestLoadDefaultsAndQuotes(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testDir+"/mirror.example.org/server.conf", []byte(`CVMFS_REPOSITORY_NAME=mirror.example.org
CVMFS_REPOSITORY_TYPE=stratum1
CVMFS_USER=root
CVMFS_SPOOL_DIR=/var/spool/cvmfs/mirror.example.org
CVMFS_STRATUM0="http://origin.example.org/cvmfs/mirror.example.org"
CVMFS_UPSTREAM_STORAGE=local,/srv/cvmfs/mirror.example.org/data/txn,/srv/cvmfs/mirror.example.org
CVMFS_PUBLIC_KEY=/etc/cvmfs/keys/example.org.pub
`), 0644))

	loaded, err := New(fs, testDir).Load("mirror.example.org")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultReplicaSettings(), loaded.Replica)
	assert.Equal(t, "http://origin.example.org/cvmfs/mirror.example.org", loaded.StratumURL)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testDir)

	_, err := r.Load("unknown.example.org")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRegistered))

	_, err = r.Load("not a name")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, testDir+"/acme.example.org/server.conf", []byte(`CVMFS_REPOSITORY_NAME=other.example.org
CVMFS_REPOSITORY_TYPE=stratum0
`), 0644))
	_, err = r.Load("acme.example.org")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	require.NoError(t, afero.WriteFile(fs, testDir+"/acme.example.org/server.conf", []byte(`CVMFS_REPOSITORY_NAME=acme.example.org
CVMFS_REPOSITORY_TYPE=stratum9
`), 0644))
	_, err = r.Load("acme.example.org")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestListRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testDir)

	names, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, r.Create(testReplica()))
	require.NoError(t, r.Create(testOrigin()))
	require.NoError(t, fs.MkdirAll(testDir+"/stray.example.org", 0755))

	names, err = r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example.org", "mirror.example.org"}, names)

	require.NoError(t, r.Remove("acme.example.org"))
	ok, err := r.Exists("acme.example.org")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testDir)
	origin := testOrigin()

	require.NoError(t, r.SaveClientConfig(origin))
	b, err := afero.ReadFile(fs, r.ClientConfig(origin.Name))
	require.NoError(t, err)
	assert.Contains(t, string(b), "CVMFS_CACHE_BASE="+origin.CacheDir()+"\n")
	assert.Contains(t, string(b), "CVMFS_SERVER_URL="+origin.StratumURL+"\n")
	assert.Contains(t, string(b), "CVMFS_HTTP_PROXY=DIRECT\n")

	require.Error(t, r.SaveClientConfig(testReplica()))
}

func TestSaveLoadLiteralValues(t *testing.T) {
	t.Setenv("HOME", "/root")
	fs := afero.NewMemMapFs()
	r := New(fs, testDir)

	for _, spoolDir := range []string{
		"/var/spool/cvmfs/acme $HOME",
		"/var/spool/cvmfs/acme's ${HOME}",
		`/var/spool/cvmfs/"acme" \$HOME #1`,
	} {
		origin := testOrigin()
		origin.SpoolDir = spoolDir
		require.NoError(t, r.Save(origin))

		loaded, err := r.Load(origin.Name)
		require.NoError(t, err)
		assert.Equal(t, spoolDir, loaded.SpoolDir)
	}

	content, err := afero.ReadFile(fs, testDir+"/acme.example.org/server.conf")
	require.NoError(t, err)
	assert.Contains(t, string(content), `CVMFS_SPOOL_DIR='/var/spool/cvmfs/"acme" \$HOME #1'`+"\n")
}
