package lock

import (
	"testing"
	"time"

	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/spool/cvmfs/acme.example.org", 0755))
	l := New(fs, "/var/spool/cvmfs/acme.example.org/in_transaction")

	held, err := l.Held()
	require.NoError(t, err)
	assert.False(t, held)

	err = l.Release()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotHeld))

	require.NoError(t, l.Acquire())
	held, err = l.Held()
	require.NoError(t, err)
	assert.True(t, held)

	err = l.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeld))

	require.NoError(t, l.Release())
	held, err = l.Held()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestTimestamp(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewTimestamp(fs, "/var/spool/cvmfs/acme.example.org/last_snapshot")

	_, ok, err := m.Read()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, m.Remove())

	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	require.NoError(t, fs.MkdirAll("/var/spool/cvmfs/acme.example.org", 0755))
	require.NoError(t, m.Touch(now))

	read, ok, err := m.Read()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, now.Equal(read))

	exists, err := m.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, afero.WriteFile(fs, m.Path(), nil, 0644))
	read, ok, err = m.Read()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, read.IsZero())

	require.NoError(t, afero.WriteFile(fs, m.Path(), []byte("yesterday"), 0644))
	_, ok, err = m.Read()
	require.Error(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Remove())
	exists, err = m.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}
