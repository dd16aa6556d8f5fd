package model

import "path/filepath"

const (
	scratchDir         = "scratch"
	rdonlyDir          = "rdonly"
	tempDir            = "tmp"
	cacheDir           = "cache"
	overlayWorkDir     = "ofs_workdir"
	transactionMarker  = "in_transaction"
	lastSnapshotMarker = "last_snapshot"

	// PublishedManifest is the signed manifest of the current revision in upstream storage
	PublishedManifest = ".cvmfspublished"

	// Whitelist is the signed trust document in upstream storage
	Whitelist = ".cvmfswhitelist"
)

// ScratchDir is the writable upper layer of the union mount
func (r Repository) ScratchDir() string {
	return filepath.Join(r.SpoolDir, scratchDir)
}

// RdonlyDir is the mount point of the read-only base layer
func (r Repository) RdonlyDir() string {
	return filepath.Join(r.SpoolDir, rdonlyDir)
}

// TempDir is the working area of the external tools
func (r Repository) TempDir() string {
	return filepath.Join(r.SpoolDir, tempDir)
}

// CacheDir holds the cache of the read-only base layer
func (r Repository) CacheDir() string {
	return filepath.Join(r.SpoolDir, cacheDir)
}

// OverlayWorkDir is the work directory required by overlayfs
func (r Repository) OverlayWorkDir() string {
	return filepath.Join(r.SpoolDir, overlayWorkDir)
}

// TransactionMarker witnesses an open transaction
func (r Repository) TransactionMarker() string {
	return filepath.Join(r.SpoolDir, transactionMarker)
}

// LastSnapshotMarker records the time of the last successful pull of a replica
func (r Repository) LastSnapshotMarker() string {
	return filepath.Join(r.SpoolDir, lastSnapshotMarker)
}

// SpoolDirs lists the working directories of a repository, by role
func (r Repository) SpoolDirs() []string {
	if r.IsReplica() {
		return []string{r.SpoolDir, r.TempDir()}
	}
	return []string{
		r.SpoolDir,
		r.ScratchDir(),
		r.RdonlyDir(),
		r.TempDir(),
		r.CacheDir(),
		r.OverlayWorkDir(),
	}
}
