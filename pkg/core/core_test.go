package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nc6/cvmfs/internal/fakeexec"
	"github.com/nc6/cvmfs/internal/fakemount"
	"github.com/nc6/cvmfs/pkg/metrics"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/nc6/cvmfs/pkg/registry"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	initialHash = "9a3b2c7d0e1f00112233445566778899aabbccdd"
	repoName    = "acme.example.org"
)

var (
	testOwner = model.Owner{Name: "cvmfs", UID: 1001, GID: 1001}
	epoch     = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
)

// knife simulates the swissknife: a sync copies the scratch layer into the base layer and
// stages a new root hash, exposed at the next mount of the base layer.
type knife struct {
	mx       sync.Mutex
	fs       afero.Fs
	mounts   *fakemount.Table
	revision int

	syncs  []swissknife.SyncRequest
	signs  []swissknife.SignRequest
	pulls  []swissknife.PullRequest
	checks []swissknife.CheckRequest
	modes  []swissknife.Mode

	syncErr  error
	signErr  error
	pullErr  error
	checkErr error
	report   string
}

func (k *knife) InMode(mode swissknife.Mode) swissknife.SyncService {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.modes = append(k.modes, mode)
	return k
}

// reset forgets the recorded requests
func (k *knife) reset() {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.syncs, k.signs, k.pulls, k.checks, k.modes = nil, nil, nil, nil, nil
}

func (k *knife) Sync(_ context.Context, r swissknife.SyncRequest) (string, error) {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.syncs = append(k.syncs, r)
	if k.syncErr != nil {
		return "", k.syncErr
	}
	err := afero.Walk(k.fs, r.ScratchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(r.ScratchDir, path)
		if err != nil {
			return err
		}
		b, err := afero.ReadFile(k.fs, path)
		if err != nil {
			return err
		}
		target := filepath.Join(r.RdonlyDir, rel)
		if err = k.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return afero.WriteFile(k.fs, target, b, 0644)
	})
	if err != nil {
		return "", err
	}
	k.revision++
	k.mounts.StageRootHash(r.RdonlyDir, fmt.Sprintf("%040x", k.revision))
	return r.Manifest, nil
}

func (k *knife) Sign(_ context.Context, r swissknife.SignRequest) error {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.signs = append(k.signs, r)
	return k.signErr
}

func (k *knife) Create(_ context.Context, r swissknife.CreateRequest) (string, error) {
	return r.Manifest, nil
}

func (k *knife) Pull(_ context.Context, r swissknife.PullRequest) error {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.pulls = append(k.pulls, r)
	return k.pullErr
}

func (k *knife) Check(_ context.Context, r swissknife.CheckRequest) (string, error) {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.checks = append(k.checks, r)
	return k.report, k.checkErr
}

type fixture struct {
	t         *testing.T
	fs        afero.Fs
	reg       *registry.Registry
	mounts    *fakemount.Table
	knife     *knife
	runner    *fakeexec.Runner
	metrics   *metrics.Metrics
	srv       *Server
	answer    bool
	questions []string
	cert      []byte
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	fs := afero.NewMemMapFs()
	mounts := fakemount.New()
	f := &fixture{
		t:       t,
		fs:      fs,
		reg:     registry.New(fs, "/etc/cvmfs/repositories.d", registry.KeysDir("/etc/cvmfs/keys")),
		mounts:  mounts,
		knife:   &knife{fs: fs, mounts: mounts},
		runner:  fakeexec.New(),
		metrics: metrics.New(metrics.WithClassifier(Classify)),
		cert:    selfSigned(t),
	}
	f.runner.Fail("selinuxenabled", 1, "")
	f.runner.On("openssl", f.openssl)

	defaults := []Option{
		Logger(zaptest.NewLogger(t)),
		Runner(f.runner),
		Mounts(mounts),
		OpenFiles(mounts),
		Sync(f.knife),
		Pull(f.knife),
		Checker(f.knife),
		Confirm(ConfirmFunc(f.confirm)),
		OwnerLookup(func(name string) (model.Owner, error) {
			if name != testOwner.Name {
				return model.Owner{}, fmt.Errorf("unknown user %q", name)
			}
			return testOwner, nil
		}),
		Metrics(f.metrics),
		Clock(func() time.Time { return epoch }),
		HooksDir("/etc/cvmfs/hooks"),
	}
	f.srv = New(fs, f.reg, append(defaults, opts...)...)
	return f
}

func (f *fixture) confirm(question string) (bool, error) {
	f.questions = append(f.questions, question)
	return f.answer, nil
}

// openssl writes the output file of every call
func (f *fixture) openssl(c process.Cmd) (string, int) {
	var out string
	for i, arg := range c.Args {
		if arg == "-out" && i+1 < len(c.Args) {
			out = c.Args[i+1]
		}
	}
	if out == "" {
		return "missing -out", 1
	}
	content := []byte("key material")
	switch c.Args[0] {
	case "x509":
		content = f.cert
	case "rsautl":
		content = []byte("signature")
	}
	if err := afero.WriteFile(f.fs, out, content, 0600); err != nil {
		return err.Error(), 1
	}
	return "", 0
}

// origin creates an origin with an initial revision, mounted read-only
func (f *fixture) origin(name string) model.Repository {
	require.NoError(f.t, f.srv.Mkfs(context.Background(), MkfsRequest{Name: name, User: testOwner.Name}))
	repo, err := f.reg.Load(name)
	require.NoError(f.t, err)
	f.mounts.SetRootHash(repo.RdonlyDir(), initialHash)
	f.mounts.ResetOps()
	f.runner.Reset()
	f.knife.reset()
	return repo
}

// replica registers a replica of a remote origin
func (f *fixture) replica(name string) model.Repository {
	require.NoError(f.t, afero.WriteFile(f.fs, "/etc/cvmfs/keys/"+name+".pub", []byte("public key"), 0444))
	require.NoError(f.t, f.srv.AddReplica(context.Background(), AddReplicaRequest{
		Name:      name,
		User:      testOwner.Name,
		OriginURL: "http://stratum0.example.org/cvmfs/" + name,
		PublicKey: "/etc/cvmfs/keys/" + name + ".pub",
	}))
	repo, err := f.reg.Load(name)
	require.NoError(f.t, err)
	return repo
}

func (f *fixture) write(path, content string) {
	require.NoError(f.t, f.fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, afero.WriteFile(f.fs, path, []byte(content), 0644))
}

func (f *fixture) exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	require.NoError(f.t, err)
	return ok
}

func (f *fixture) entries(dir string) []string {
	infos, err := afero.ReadDir(f.fs, dir)
	require.NoError(f.t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func (f *fixture) rootHash(repo model.Repository) string {
	hash, err := f.mounts.RootHash(repo.RdonlyDir())
	require.NoError(f.t, err)
	return hash
}

func (f *fixture) inTransaction(repo model.Repository) bool {
	return f.exists(repo.TransactionMarker())
}

func selfSigned(t *testing.T) []byte {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: repoName + " CVMFS Release Managers"},
		NotBefore:    epoch,
		NotAfter:     epoch.Add(365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
