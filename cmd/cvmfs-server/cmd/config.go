package cmd

import (
	"context"
	"os"
	"time"

	"github.com/nc6/cvmfs/pkg/core"
	"github.com/nc6/cvmfs/pkg/dlogger"
	"github.com/nc6/cvmfs/pkg/metrics"
	"github.com/nc6/cvmfs/pkg/process"
	"github.com/nc6/cvmfs/pkg/registry"
	"github.com/nc6/cvmfs/pkg/swissknife"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	keyRepositoriesDir   = "repositories_dir"
	keyKeysDir           = "keys_dir"
	keySpoolRoot         = "spool_root"
	keyUnionRoot         = "union_root"
	keyStorageRoot       = "storage_root"
	keyFstab             = "fstab"
	keyHooksDir          = "hooks_dir"
	keyLockDir           = "lock_dir"
	keySwissknife        = "swissknife"
	keySwissknifeDebug   = "swissknife_debug"
	keyDebugger          = "debugger"
	keyOpenSSL           = "openssl"
	keyLogLevel          = "loglevel"
	keyMetricsTextfile   = "metrics_textfile"
	keyWhitelistValidity = "whitelist_validity"
)

// CLIConfig describes the configuration of the tool
type CLIConfig struct {
	RepositoriesDir   string        `json:"repositories_dir" yaml:"repositories_dir" mapstructure:"repositories_dir"`
	KeysDir           string        `json:"keys_dir" yaml:"keys_dir" mapstructure:"keys_dir"`
	SpoolRoot         string        `json:"spool_root" yaml:"spool_root" mapstructure:"spool_root"`
	UnionRoot         string        `json:"union_root" yaml:"union_root" mapstructure:"union_root"`
	StorageRoot       string        `json:"storage_root" yaml:"storage_root" mapstructure:"storage_root"`
	Fstab             string        `json:"fstab" yaml:"fstab" mapstructure:"fstab"`
	HooksDir          string        `json:"hooks_dir" yaml:"hooks_dir" mapstructure:"hooks_dir"`
	LockDir           string        `json:"lock_dir" yaml:"lock_dir" mapstructure:"lock_dir"`
	Swissknife        string        `json:"swissknife" yaml:"swissknife" mapstructure:"swissknife"`
	SwissknifeDebug   string        `json:"swissknife_debug" yaml:"swissknife_debug" mapstructure:"swissknife_debug"`
	Debugger          string        `json:"debugger" yaml:"debugger" mapstructure:"debugger"`
	OpenSSL           string        `json:"openssl" yaml:"openssl" mapstructure:"openssl"`
	LogLevel          string        `json:"loglevel" yaml:"loglevel" mapstructure:"loglevel"`
	MetricsTextfile   string        `json:"metrics_textfile" yaml:"metrics_textfile" mapstructure:"metrics_textfile"`
	WhitelistValidity time.Duration `json:"whitelist_validity" yaml:"whitelist_validity" mapstructure:"whitelist_validity"`
}

var config *CLIConfig

var (
	// used to patch over the host during test
	hostFs      afero.Fs = afero.NewOsFs()
	hostOptions []core.Option
)

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *CLIConfig) setParams(flags *flagsT) {
	if flags.root.logLevel == "" {
		flags.root.logLevel = c.LogLevel
	}
}

// newServer builds the server of the repositories of this host, from the configuration
func (c *CLIConfig) newServer(flags *flagsT) (*core.Server, *metrics.Metrics, error) {
	logger, err := dlogger.GetLogger(flags.root.logLevel)
	if err != nil {
		return nil, nil, err
	}
	runner := process.New(process.Logger(logger))
	knife := swissknife.New(runner,
		swissknife.Binary(c.Swissknife),
		swissknife.DebugBinary(c.SwissknifeDebug),
		swissknife.DebuggerBinary(c.Debugger),
		swissknife.Logger(logger),
	)
	m := metrics.New(metrics.WithTextfile(c.MetricsTextfile), metrics.WithClassifier(core.Classify))

	opts := []core.Option{
		core.Logger(logger),
		core.Runner(runner),
		core.Sync(knife),
		core.Pull(knife),
		core.Checker(knife),
		core.Confirm(newPrompter(os.Stdin, os.Stdout)),
		core.Metrics(m),
		core.KeysDir(c.KeysDir),
		core.SpoolRoot(c.SpoolRoot),
		core.UnionRoot(c.UnionRoot),
		core.StorageRoot(c.StorageRoot),
		core.HooksDir(c.HooksDir),
		core.Fstab(c.Fstab),
		core.OpenSSL(c.OpenSSL),
		core.WhitelistValidity(c.WhitelistValidity),
	}
	reg := registry.New(hostFs, c.RepositoriesDir, registry.KeysDir(c.KeysDir))
	return core.New(hostFs, reg, append(opts, hostOptions...)...), m, nil
}

// runOperation runs an operation on a fresh server, then flushes the metrics
func runOperation(msg string, operation func(context.Context, *core.Server) error) {
	srv, m, err := config.newServer(&serverFlags)
	if err != nil {
		wrapFatalln("initialize", err)
		return
	}
	err = operation(context.Background(), srv)
	if ferr := m.Flush(); ferr != nil {
		errLogger.Printf("cannot write metrics: %v", ferr)
	}
	if err != nil {
		wrapFatalln(msg, err)
	}
}
