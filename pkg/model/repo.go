package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const maxNameLength = 60

// Role of a repository on this host
type Role string

const (
	// RoleOrigin is the authoritative, writable source of a content tree (stratum 0)
	RoleOrigin Role = "stratum0"

	// RoleReplica is a read-only mirror pulling signed revisions from an origin (stratum 1)
	RoleReplica Role = "stratum1"
)

// ParseRole accepts both the configuration values and their aliases
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleOrigin), "origin":
		return RoleOrigin, nil
	case string(RoleReplica), "replica":
		return RoleReplica, nil
	default:
		return "", fmt.Errorf("unknown repository type %q", s)
	}
}

// Label is the human-readable name of a role
func (r Role) Label() string {
	switch r {
	case RoleOrigin:
		return "origin"
	case RoleReplica:
		return "replica"
	default:
		return "unknown"
	}
}

// Keys locates the signing material of a repository
type Keys struct {
	Certificate string `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	PrivateKey  string `json:"privateKey,omitempty" yaml:"privateKey,omitempty"`
	MasterKey   string `json:"masterKey,omitempty" yaml:"masterKey,omitempty"`
	PublicKey   string `json:"publicKey,omitempty" yaml:"publicKey,omitempty"`
}

// KeysFor yields the conventional key locations for a repository in dir
func KeysFor(dir, name string) Keys {
	return Keys{
		Certificate: dir + "/" + name + ".crt",
		PrivateKey:  dir + "/" + name + ".key",
		MasterKey:   dir + "/" + name + ".masterkey",
		PublicKey:   dir + "/" + name + ".pub",
	}
}

// ReplicaSettings tune the pull of a replica
type ReplicaSettings struct {
	Workers int           `json:"workers" yaml:"workers"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Retries int           `json:"retries" yaml:"retries"`
}

// DefaultReplicaSettings applies when replica.conf does not say otherwise
func DefaultReplicaSettings() ReplicaSettings {
	return ReplicaSettings{
		Workers: 16,
		Timeout: 10 * time.Second,
		Retries: 2,
	}
}

// Repository is the configuration of a repository, as registered on this host.
type Repository struct {
	Name          string          `json:"name" yaml:"name"`
	Role          Role            `json:"role" yaml:"role"`
	User          string          `json:"user" yaml:"user"`
	UnionDir      string          `json:"unionDir,omitempty" yaml:"unionDir,omitempty"`
	SpoolDir      string          `json:"spoolDir" yaml:"spoolDir"`
	StratumURL    string          `json:"stratumURL" yaml:"stratumURL"`
	Upstream      Upstream        `json:"upstream" yaml:"upstream"`
	HashAlgorithm string          `json:"hashAlgorithm,omitempty" yaml:"hashAlgorithm,omitempty"`
	Keys          Keys            `json:"keys" yaml:"keys"`
	Replica       ReplicaSettings `json:"replica,omitempty" yaml:"replica,omitempty"`
}

// IsOrigin tells if the repository accepts transactions
func (r Repository) IsOrigin() bool {
	return r.Role == RoleOrigin
}

// IsReplica tells if the repository mirrors some origin
func (r Repository) IsReplica() bool {
	return r.Role == RoleReplica
}

// ValidateName checks that a repository name is a fully qualified name,
// e.g. acme.example.org
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field: repository name is empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("invalid name: repository name %s is longer than %d characters", name, maxNameLength)
	}
	for i, c := range name {
		if c > unicode.MaxASCII || (!unicode.IsDigit(c) && !unicode.IsLetter(c) && c != '-' && c != '.') {
			return fmt.Errorf("invalid name: repository name:%s contains unsupported character \"%s\"",
				name,
				string([]rune(name)[i]))
		}
	}
	if !strings.Contains(name, ".") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid name: repository name %s is not a fully qualified name", name)
	}
	return nil
}

// Validate a repository configuration
func Validate(repo Repository) error {
	if err := ValidateName(repo.Name); err != nil {
		return err
	}
	var cause string
	if repo.User == "" {
		cause += "User is empty. "
	}
	if repo.SpoolDir == "" {
		cause += "SpoolDir is empty. "
	}
	if repo.StratumURL == "" {
		cause += "StratumURL is empty. "
	}
	if repo.Upstream.Type == "" {
		cause += "Upstream is empty. "
	}
	switch repo.Role {
	case RoleOrigin:
		if repo.UnionDir == "" {
			cause += "UnionDir is empty. "
		}
	case RoleReplica:
		if repo.Keys.PublicKey == "" {
			cause += "PublicKey is empty. "
		}
		if repo.Replica.Workers <= 0 {
			cause += "Workers must be positive. "
		}
	default:
		cause += fmt.Sprintf("Role %q is invalid. ", repo.Role)
	}
	if cause != "" {
		return fmt.Errorf("validation failed for %s, cause = %s", repo.Name, strings.TrimSpace(cause))
	}
	return nil
}
