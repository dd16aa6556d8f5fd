package model

import (
	"fmt"
	"os/user"
	"strconv"
)

// Owner is the unix account editing a repository
type Owner struct {
	Name string
	UID  int
	GID  int
}

func (o Owner) String() string {
	return fmt.Sprintf("%s(%d:%d)", o.Name, o.UID, o.GID)
}

// LookupOwner resolves a user name or numeric id into an Owner
func LookupOwner(name string) (Owner, error) {
	var (
		u   *user.User
		err error
	)
	if _, convErr := strconv.Atoi(name); convErr == nil {
		u, err = user.LookupId(name)
	} else {
		u, err = user.Lookup(name)
	}
	if err != nil {
		return Owner{}, fmt.Errorf("lookup user %q: %w", name, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Owner{}, fmt.Errorf("user %q has a non-numeric uid %q", name, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Owner{}, fmt.Errorf("user %q has a non-numeric gid %q", name, u.Gid)
	}
	return Owner{Name: u.Username, UID: uid, GID: gid}, nil
}
