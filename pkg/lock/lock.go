// Package lock materializes the state of a repository with marker files in its spool area.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/spf13/afero"
)

var (
	// ErrHeld is returned when acquiring a lock which already exists
	ErrHeld = errors.New("lock is held")

	// ErrNotHeld is returned when releasing a lock which does not exist
	ErrNotHeld = errors.New("lock is not held")
)

// Lock is a marker file: the lock is held while the file exists.
//
// Acquire uses an exclusive create, so that two concurrent acquisitions cannot both succeed.
type Lock struct {
	fs   afero.Fs
	path string
}

// New lock on path
func New(fs afero.Fs, path string) *Lock {
	return &Lock{fs: fs, path: path}
}

// Path of the marker file
func (l *Lock) Path() string {
	return l.path
}

// Acquire the lock, which must not be held
func (l *Lock) Acquire() error {
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrHeld.Wrapf("%s", l.path)
		}
		return fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	return f.Close()
}

// Release the lock, which must be held
func (l *Lock) Release() error {
	if err := l.fs.Remove(l.path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotHeld.Wrapf("%s", l.path)
		}
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

// Held tells if the marker file exists
func (l *Lock) Held() (bool, error) {
	return afero.Exists(l.fs, l.path)
}

// Timestamp is a marker file recording the time of some event
type Timestamp struct {
	fs   afero.Fs
	path string
}

// NewTimestamp marker on path
func NewTimestamp(fs afero.Fs, path string) *Timestamp {
	return &Timestamp{fs: fs, path: path}
}

// Path of the marker file
func (m *Timestamp) Path() string {
	return m.path
}

// Touch records t, replacing any former record
func (m *Timestamp) Touch(t time.Time) error {
	tmp := filepath.Join(filepath.Dir(m.path), "."+filepath.Base(m.path)+".tmp")
	if err := afero.WriteFile(m.fs, tmp, []byte(t.UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return err
	}
	return m.fs.Rename(tmp, m.path)
}

// Read the recorded time. The boolean is false when no time was recorded.
func (m *Timestamp) Read() (time.Time, bool, error) {
	b, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	content := strings.TrimSpace(string(b))
	if content == "" {
		// an empty marker still witnesses the event
		return time.Time{}, true, nil
	}
	t, err := time.Parse(time.RFC3339, content)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("invalid timestamp in %s: %w", m.path, err)
	}
	return t, true, nil
}

// Exists tells if the marker file exists
func (m *Timestamp) Exists() (bool, error) {
	return afero.Exists(m.fs, m.path)
}

// Remove the record, if any
func (m *Timestamp) Remove() error {
	if err := m.fs.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
