// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// Logged decorates a store with debug logs
func Logged(l *zap.Logger, store Store) Store {
	if l == nil {
		l = zap.NewNop()
	}
	return &loggedStore{
		store: store,
		l:     l.With(zap.String("storage", store.String())),
	}
}

type loggedStore struct {
	store Store
	l     *zap.Logger
}

func (s *loggedStore) done(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	if err != nil {
		s.l.Debug("storage "+op+" failed", append(fields, zap.Error(err))...)
		return
	}
	s.l.Debug("storage "+op, fields...)
}

func (s *loggedStore) Has(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	has, err := s.store.Has(ctx, key)
	s.done("has", start, err, zap.String("key", key), zap.Bool("found", has))
	return has, err
}

func (s *loggedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rdr, err := s.store.Get(ctx, key)
	s.done("get", start, err, zap.String("key", key))
	return rdr, err
}

func (s *loggedStore) Put(ctx context.Context, key string, rdr io.Reader) error {
	start := time.Now()
	err := s.store.Put(ctx, key, rdr)
	s.done("put", start, err, zap.String("key", key))
	return err
}

func (s *loggedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.done("delete", start, err, zap.String("key", key))
	return err
}

func (s *loggedStore) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	keys, err := s.store.Keys(ctx)
	s.done("keys", start, err, zap.Int("count", len(keys)))
	return keys, err
}

func (s *loggedStore) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.store.Clear(ctx)
	s.done("clear", start, err)
	return err
}

func (s *loggedStore) String() string {
	return s.store.String()
}
