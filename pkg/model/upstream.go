package model

import (
	"fmt"
	"strings"
)

// UpstreamType is the kind of storage backing a repository
type UpstreamType string

const (
	// UpstreamLocal stores objects in a local directory
	UpstreamLocal UpstreamType = "local"

	// UpstreamS3 stores objects in an S3 bucket
	UpstreamS3 UpstreamType = "S3"
)

// Upstream describes the storage target of a repository, in the form
// "<type>,<temp dir>,<type specific config>".
//
// For local storage, the config is a directory: local,/srv/cvmfs/acme.example.org/data/txn,/srv/cvmfs/acme.example.org
//
// For S3, the config is "<bucket>@<S3 config file>": S3,/var/spool/cvmfs/acme.example.org/tmp,acme@/etc/cvmfs/acme.s3.conf
type Upstream struct {
	Type    UpstreamType `json:"type" yaml:"type"`
	TempDir string       `json:"tempDir" yaml:"tempDir"`
	Config  string       `json:"config" yaml:"config"`
}

// ParseUpstream parses an upstream definition
func ParseUpstream(s string) (Upstream, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Upstream{}, fmt.Errorf("invalid upstream storage %q: expected <type>,<temp dir>,<config>", s)
	}
	u := Upstream{TempDir: parts[1], Config: parts[2]}
	switch strings.ToLower(parts[0]) {
	case "local":
		u.Type = UpstreamLocal
	case "s3":
		u.Type = UpstreamS3
		if _, _, err := u.S3(); err != nil {
			return Upstream{}, err
		}
	default:
		return Upstream{}, fmt.Errorf("invalid upstream storage %q: unsupported type %q", s, parts[0])
	}
	return u, nil
}

// LocalUpstream builds the upstream definition of a local storage rooted at dir
func LocalUpstream(dir string) Upstream {
	return Upstream{
		Type:    UpstreamLocal,
		TempDir: dir + "/data/txn",
		Config:  dir,
	}
}

func (u Upstream) String() string {
	if u.Type == "" {
		return ""
	}
	return string(u.Type) + "," + u.TempDir + "," + u.Config
}

// IsLocal tells if objects are stored on this host
func (u Upstream) IsLocal() bool {
	return u.Type == UpstreamLocal
}

// S3 splits the config of an S3 upstream into a bucket name and the path to the S3 config file
func (u Upstream) S3() (bucket, configFile string, err error) {
	if u.Type != UpstreamS3 {
		return "", "", fmt.Errorf("upstream %q is not S3", u)
	}
	parts := strings.SplitN(u.Config, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 upstream config %q: expected <bucket>@<config file>", u.Config)
	}
	return parts[0], parts[1], nil
}
