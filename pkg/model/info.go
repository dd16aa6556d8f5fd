package model

import "time"

// Info summarizes the state of a repository
type Info struct {
	Name            string    `json:"name" yaml:"name"`
	Role            Role      `json:"role" yaml:"role"`
	User            string    `json:"user" yaml:"user"`
	StratumURL      string    `json:"stratumURL" yaml:"stratumURL"`
	Upstream        string    `json:"upstream" yaml:"upstream"`
	UnionDir        string    `json:"unionDir,omitempty" yaml:"unionDir,omitempty"`
	InTransaction   bool      `json:"inTransaction" yaml:"inTransaction"`
	Writable        bool      `json:"writable,omitempty" yaml:"writable,omitempty"`
	RootHash        string    `json:"rootHash,omitempty" yaml:"rootHash,omitempty"`
	WhitelistExpiry time.Time `json:"whitelistExpiry,omitempty" yaml:"whitelistExpiry,omitempty"`
	LastSnapshot    time.Time `json:"lastSnapshot,omitempty" yaml:"lastSnapshot,omitempty"`
	ScratchBytes    int64     `json:"scratchBytes,omitempty" yaml:"scratchBytes,omitempty"`
}

// Infos sorts by repository name
type Infos []Info

func (r Infos) Len() int           { return len(r) }
func (r Infos) Less(i, j int) bool { return r[i].Name < r[j].Name }
func (r Infos) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

// IsReplica tells if the repository mirrors some origin
func (i Info) IsReplica() bool {
	return i.Role == RoleReplica
}
