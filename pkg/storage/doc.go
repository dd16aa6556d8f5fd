// Copyright © 2018 One Concern

// Package storage provides an interface to the upstream storage of a repository.
//
// This package supports the following backends:
//   - S3 (AWS or any S3-compatible endpoint)
//   - local file system
package storage
