package mount

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nc6/cvmfs/pkg/model"
	"github.com/spf13/afero"
)

const fstabTag = "# added by cvmfs-server for "

// Entry of the fstab
type Entry struct {
	Device     string
	MountPoint string
	Type       string
	Options    []string
}

func (e Entry) String() string {
	return strings.Join([]string{e.Device, e.MountPoint, e.Type, strings.Join(e.Options, ","), "0", "0"}, " ")
}

// RepositoryEntries yields the fstab entries of an origin repository: the read-only base layer,
// then the union mount over it. Both mount read-only and are not mounted at boot.
func RepositoryEntries(repo model.Repository, clientConfig string) []Entry {
	return []Entry{
		{
			Device:     "cvmfs2#" + repo.Name,
			MountPoint: repo.RdonlyDir(),
			Type:       "fuse",
			Options:    []string{"allow_other", "config=" + clientConfig, "cvmfs_suid", "noauto"},
		},
		{
			Device:     "overlay_" + repo.Name,
			MountPoint: repo.UnionDir,
			Type:       "overlay",
			Options: []string{
				"upperdir=" + repo.ScratchDir(),
				"lowerdir=" + repo.RdonlyDir(),
				"workdir=" + repo.OverlayWorkDir(),
				"noauto", "nodev", "ro",
			},
		},
	}
}

// Fstab edits the entries owned by cvmfs-server in a fstab file.
//
// Every line it writes is tagged with the repository name, so that other entries are never touched.
type Fstab struct {
	fs   afero.Fs
	path string
}

// NewFstab edits the fstab file at path
func NewFstab(fs afero.Fs, path string) *Fstab {
	return &Fstab{fs: fs, path: path}
}

// Add entries for a repository. Former entries of that repository are replaced.
func (f *Fstab) Add(name string, entries ...Entry) error {
	lines, err := f.read()
	if err != nil {
		return err
	}
	lines = withoutRepo(lines, name)
	for _, e := range entries {
		lines = append(lines, e.String()+" "+fstabTag+name)
	}
	return f.write(lines)
}

// Remove the entries of a repository
func (f *Fstab) Remove(name string) error {
	lines, err := f.read()
	if err != nil {
		return err
	}
	kept := withoutRepo(lines, name)
	if len(kept) == len(lines) {
		return nil
	}
	return f.write(kept)
}

// Entries of a repository, as written in the file
func (f *Fstab) Entries(name string) ([]string, error) {
	lines, err := f.read()
	if err != nil {
		return nil, err
	}
	var res []string
	for _, line := range lines {
		if ownedBy(line, name) {
			res = append(res, strings.TrimSpace(strings.TrimSuffix(line, fstabTag+name)))
		}
	}
	return res, nil
}

func ownedBy(line, name string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), fstabTag+name)
}

func withoutRepo(lines []string, name string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !ownedBy(line, name) {
			kept = append(kept, line)
		}
	}
	return kept
}

func (f *Fstab) read() ([]string, error) {
	b, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func (f *Fstab) write(lines []string) error {
	mode := os.FileMode(0644)
	if info, err := f.fs.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	tmp := filepath.Join(filepath.Dir(f.path), "."+filepath.Base(f.path)+".cvmfs-server")
	if err := afero.WriteFile(f.fs, tmp, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}
