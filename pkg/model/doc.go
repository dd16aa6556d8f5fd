/*
 * Copyright © 2019 One Concern
 *
 */

// Package model describes the repositories managed by cvmfs-server.
//
// A repository is either an origin (stratum 0), which accepts transactions and
// publishes signed revisions, or a replica (stratum 1), which mirrors the signed
// revisions of an origin.
//
// Values in this package are immutable snapshots of the configuration on disk:
// they are loaded fresh for every operation and never written back implicitly.
package model
