// Package registry reads and writes the configuration of the repositories hosted on this machine.
//
// Each repository owns a directory <repositories dir>/<name> holding shell-compatible
// KEY=value files: server.conf for every repository and replica.conf for the tuning of replicas.
//
// The configuration on disk is the single source of truth: Load is expected to be called
// at the beginning of every operation and the returned value is never cached.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	serverConf  = "server.conf"
	replicaConf = "replica.conf"
	clientConf  = "client.conf"

	keyName          = "CVMFS_REPOSITORY_NAME"
	keyType          = "CVMFS_REPOSITORY_TYPE"
	keyUser          = "CVMFS_USER"
	keyUnionDir      = "CVMFS_UNION_DIR"
	keySpoolDir      = "CVMFS_SPOOL_DIR"
	keyStratum0      = "CVMFS_STRATUM0"
	keyUpstream      = "CVMFS_UPSTREAM_STORAGE"
	keyHashAlgorithm = "CVMFS_HASH_ALGORITHM"
	keyPublicKey     = "CVMFS_PUBLIC_KEY"
	keyWorkers       = "CVMFS_NUM_WORKERS"
	keyTimeout       = "CVMFS_HTTP_TIMEOUT"
	keyRetries       = "CVMFS_HTTP_RETRIES"
)

var (
	// ErrNotRegistered is returned when no configuration exists for a repository
	ErrNotRegistered = errors.New("repository is not registered")

	// ErrRegistered is returned when attempting to register an existing repository
	ErrRegistered = errors.New("repository is already registered")

	// ErrInvalidConfig is returned when the configuration on disk cannot be understood
	ErrInvalidConfig = errors.New("invalid repository configuration")
)

// Registry of repositories
type Registry struct {
	fs      afero.Fs
	dir     string
	keysDir string
}

// Option for the registry
type Option func(*Registry)

// KeysDir sets the directory holding the signing keys of origin repositories
func KeysDir(dir string) Option {
	return func(r *Registry) {
		r.keysDir = dir
	}
}

// New registry rooted at dir
func New(fs afero.Fs, dir string, opts ...Option) *Registry {
	r := &Registry{
		fs:      fs,
		dir:     dir,
		keysDir: "/etc/cvmfs/keys",
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Dir is the configuration directory of a repository
func (r *Registry) Dir(name string) string {
	return filepath.Join(r.dir, name)
}

// Exists tells if a repository is registered
func (r *Registry) Exists(name string) (bool, error) {
	return afero.Exists(r.fs, filepath.Join(r.Dir(name), serverConf))
}

// List the names of all registered repositories, sorted
func (r *Registry) List() ([]string, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing repositories in %s: %w", r.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := r.Exists(entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load the configuration of a repository from disk
func (r *Registry) Load(name string) (model.Repository, error) {
	if err := model.ValidateName(name); err != nil {
		return model.Repository{}, err
	}
	ok, err := r.Exists(name)
	if err != nil {
		return model.Repository{}, err
	}
	if !ok {
		return model.Repository{}, ErrNotRegistered.Wrapf("%s", name)
	}

	v := viper.New()
	v.SetFs(r.fs)
	v.SetConfigType("env")
	v.SetConfigFile(filepath.Join(r.Dir(name), serverConf))
	if err = v.ReadInConfig(); err != nil {
		return model.Repository{}, ErrInvalidConfig.Wrap(err)
	}
	replicaFile := filepath.Join(r.Dir(name), replicaConf)
	if ok, _ = afero.Exists(r.fs, replicaFile); ok {
		v.SetConfigFile(replicaFile)
		if err = v.MergeInConfig(); err != nil {
			return model.Repository{}, ErrInvalidConfig.Wrap(err)
		}
	}

	return r.fromConfig(name, v)
}

func (r *Registry) fromConfig(name string, v *viper.Viper) (model.Repository, error) {
	if configured := v.GetString(keyName); configured != name {
		return model.Repository{}, ErrInvalidConfig.Wrapf("%s declares repository %q, expected %q", keyName, configured, name)
	}
	role, err := model.ParseRole(v.GetString(keyType))
	if err != nil {
		return model.Repository{}, ErrInvalidConfig.Wrap(err)
	}
	upstream, err := model.ParseUpstream(v.GetString(keyUpstream))
	if err != nil {
		return model.Repository{}, ErrInvalidConfig.Wrap(err)
	}

	repo := model.Repository{
		Name:          name,
		Role:          role,
		User:          v.GetString(keyUser),
		UnionDir:      v.GetString(keyUnionDir),
		SpoolDir:      v.GetString(keySpoolDir),
		StratumURL:    v.GetString(keyStratum0),
		Upstream:      upstream,
		HashAlgorithm: v.GetString(keyHashAlgorithm),
	}

	switch role {
	case model.RoleOrigin:
		repo.Keys = model.KeysFor(r.keysDir, name)
		if pub := v.GetString(keyPublicKey); pub != "" {
			repo.Keys.PublicKey = pub
		}
	case model.RoleReplica:
		repo.Keys.PublicKey = v.GetString(keyPublicKey)
		repo.Replica = model.DefaultReplicaSettings()
		if v.IsSet(keyWorkers) {
			repo.Replica.Workers = v.GetInt(keyWorkers)
		}
		if v.IsSet(keyTimeout) {
			repo.Replica.Timeout = time.Duration(v.GetInt(keyTimeout)) * time.Second
		}
		if v.IsSet(keyRetries) {
			repo.Replica.Retries = v.GetInt(keyRetries)
		}
	}

	if err = model.Validate(repo); err != nil {
		return model.Repository{}, ErrInvalidConfig.Wrap(err)
	}
	return repo, nil
}

// Create registers a new repository. It fails if the repository is already registered.
func (r *Registry) Create(repo model.Repository) error {
	ok, err := r.Exists(repo.Name)
	if err != nil {
		return err
	}
	if ok {
		return ErrRegistered.Wrapf("%s", repo.Name)
	}
	return r.Save(repo)
}

// Save writes the configuration of a repository, overwriting any previous one
func (r *Registry) Save(repo model.Repository) error {
	if err := model.Validate(repo); err != nil {
		return err
	}
	if err := r.fs.MkdirAll(r.Dir(repo.Name), 0755); err != nil {
		return fmt.Errorf("creating configuration directory for %s: %w", repo.Name, err)
	}

	server := map[string]string{
		keyName:          repo.Name,
		keyType:          string(repo.Role),
		keyUser:          repo.User,
		keySpoolDir:      repo.SpoolDir,
		keyStratum0:      repo.StratumURL,
		keyUpstream:      repo.Upstream.String(),
		keyPublicKey:     repo.Keys.PublicKey,
		keyUnionDir:      repo.UnionDir,
		keyHashAlgorithm: repo.HashAlgorithm,
	}
	if err := r.writeConf(filepath.Join(r.Dir(repo.Name), serverConf), server); err != nil {
		return err
	}
	if !repo.IsReplica() {
		return nil
	}
	replica := map[string]string{
		keyWorkers: strconv.Itoa(repo.Replica.Workers),
		keyTimeout: strconv.Itoa(int(repo.Replica.Timeout / time.Second)),
		keyRetries: strconv.Itoa(repo.Replica.Retries),
	}
	return r.writeConf(filepath.Join(r.Dir(repo.Name), replicaConf), replica)
}

// ClientConfig is the configuration of the client mounting the read-only base layer of an origin
func (r *Registry) ClientConfig(name string) string {
	return filepath.Join(r.Dir(name), clientConf)
}

// SaveClientConfig writes the client configuration of an origin: the read-only base layer
// is served from the stratum URL, verified with the public key and cached in the spool area.
func (r *Registry) SaveClientConfig(repo model.Repository) error {
	if !repo.IsOrigin() {
		return fmt.Errorf("%s is not an origin: no client configuration", repo.Name)
	}
	if err := r.fs.MkdirAll(r.Dir(repo.Name), 0755); err != nil {
		return fmt.Errorf("creating configuration directory for %s: %w", repo.Name, err)
	}
	return r.writeConf(r.ClientConfig(repo.Name), map[string]string{
		"CVMFS_CACHE_BASE":     repo.CacheDir(),
		"CVMFS_RELOAD_SOCKETS": repo.CacheDir(),
		"CVMFS_SERVER_URL":     repo.StratumURL,
		"CVMFS_HTTP_PROXY":     "DIRECT",
		"CVMFS_PUBLIC_KEY":     repo.Keys.PublicKey,
		"CVMFS_ROOT_READONLY":  "yes",
	})
}

// Remove the configuration of a repository
func (r *Registry) Remove(name string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	if err := r.fs.RemoveAll(r.Dir(name)); err != nil {
		return fmt.Errorf("removing configuration of %s: %w", name, err)
	}
	return nil
}

// writeConf writes sorted KEY=value lines, the format sourced by shell scripts.
//
// NOTE: viper can't be used to write these files, as it lower-cases keys.
func (r *Registry) writeConf(path string, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(quote(values[k]))
		buf.WriteByte('\n')
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// quote keeps values literal for both the shell and the loader: single quotes,
// or escaped double quotes when the value holds a single quote.
func quote(value string) string {
	if !strings.ContainsAny(value, " \t\"'$#\\`") {
		return value
	}
	if !strings.Contains(value, "'") {
		return "'" + value + "'"
	}
	return `"` + doubleQuoteEscaper.Replace(value) + `"`
}

var doubleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
