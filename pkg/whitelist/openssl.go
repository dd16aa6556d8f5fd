package whitelist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nc6/cvmfs/pkg/model"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const keyBits = "2048"

// Signer produces keys and signatures with openssl
type Signer struct {
	fs      afero.Fs
	runner  process.Runner
	openssl string
	tempDir string
	l       *zap.Logger
}

// SignerOption configures the signer
type SignerOption func(*Signer)

// OpenSSL sets the openssl executable
func OpenSSL(name string) SignerOption {
	return func(s *Signer) {
		if name != "" {
			s.openssl = name
		}
	}
}

// SignerLogger sets the logger of the signer
func SignerLogger(l *zap.Logger) SignerOption {
	return func(s *Signer) {
		if l != nil {
			s.l = l
		}
	}
}

// NewSigner working with files in tempDir
func NewSigner(fs afero.Fs, runner process.Runner, tempDir string, opts ...SignerOption) *Signer {
	s := &Signer{
		fs:      fs,
		runner:  runner,
		openssl: "openssl",
		tempDir: tempDir,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Signer) run(ctx context.Context, args ...string) error {
	_, err := s.runner.Run(ctx, process.Cmd{Name: s.openssl, Args: args})
	return err
}

// Sign a whitelist with the master key of the repository
func (s *Signer) Sign(ctx context.Context, d Document, masterKey string) (Document, error) {
	id := ksuid.New().String()
	in := filepath.Join(s.tempDir, "whitelist."+id+".digest")
	out := filepath.Join(s.tempDir, "whitelist."+id+".signature")
	defer func() {
		_ = s.fs.Remove(in)
		_ = s.fs.Remove(out)
	}()

	if err := afero.WriteFile(s.fs, in, d.Digest(), 0600); err != nil {
		return d, err
	}
	s.l.Debug("signing whitelist", zap.String("repo", d.Name), zap.String("key", masterKey))
	if err := s.run(ctx, "rsautl", "-inkey", masterKey, "-sign", "-in", in, "-out", out); err != nil {
		return d, err
	}
	signature, err := afero.ReadFile(s.fs, out)
	if err != nil {
		return d, fmt.Errorf("reading signature: %w", err)
	}
	d.Signature = signature
	return d, nil
}

// GenerateKeys creates the master key pair and the self-signed certificate of a repository.
// The private keys are readable by owner only.
func (s *Signer) GenerateKeys(ctx context.Context, name string, keys model.Keys, owner model.Owner) error {
	s.l.Debug("generating keys", zap.String("repo", name))
	csr := filepath.Join(s.tempDir, name+"."+ksuid.New().String()+".csr")
	defer func() { _ = s.fs.Remove(csr) }()

	for _, args := range [][]string{
		{"genrsa", "-out", keys.MasterKey, keyBits},
		{"rsa", "-in", keys.MasterKey, "-pubout", "-out", keys.PublicKey},
		{"genrsa", "-out", keys.PrivateKey, keyBits},
		{"req", "-new", "-subj", "/CN=" + name + " CVMFS Release Managers", "-key", keys.PrivateKey, "-out", csr},
		{"x509", "-req", "-days", "365", "-in", csr, "-signkey", keys.PrivateKey, "-out", keys.Certificate},
	} {
		if err := s.run(ctx, args...); err != nil {
			return err
		}
	}

	for path, mode := range map[string]os.FileMode{
		keys.MasterKey:   0400,
		keys.PrivateKey:  0400,
		keys.PublicKey:   0444,
		keys.Certificate: 0444,
	} {
		if err := s.fs.Chown(path, owner.UID, owner.GID); err != nil {
			return err
		}
		if err := s.fs.Chmod(path, mode); err != nil {
			return err
		}
	}
	return nil
}
