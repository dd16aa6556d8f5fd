// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"

	"github.com/nc6/cvmfs/pkg/storage/status"
)

// MaxObjectSizeInMemory bounds the size of objects read with ReadAll
const MaxObjectSizeInMemory = 64 * 1024 * 1024

// Store implementations know how to write entries to a K/V store.
//
// Typically this is something file system-like: S3, local FS, NFS, ...
// Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// ReadAll fetches a small object in memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	object, err := ioutil.ReadAll(io.LimitReader(reader, MaxObjectSizeInMemory+1))
	if err != nil {
		return nil, err
	}
	if len(object) > MaxObjectSizeInMemory {
		return nil, status.ErrObjectTooBig.Wrapf("%s in %s", key, store)
	}
	return object, nil
}

// PutBytes stores a small object held in memory
func PutBytes(ctx context.Context, store Store, key string, object []byte) error {
	return store.Put(ctx, key, bytes.NewReader(object))
}
