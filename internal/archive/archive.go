// Package archive implements the on-disk snapshot store: the naming
// convention for backup archives, typed directory listing, the latest
// alias, and retention pruning.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// TimestampLayout encodes capture time at second granularity. The layout
	// sorts lexicographically in timestamp order, which retention relies on.
	TimestampLayout = "2006-01-02_15-04-05"

	// Extension is the archive file extension.
	Extension = ".tar.gz"

	// latestTag marks the alias archive for a repository.
	latestTag = "latest"
)

// Descriptor identifies one timestamped archive on disk.
type Descriptor struct {
	Owner     string
	Name      string
	Timestamp time.Time
	Path      string
}

// ArchiveName returns the base filename for a timestamped archive.
func ArchiveName(owner, name string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s", owner, name, ts.Format(TimestampLayout), Extension)
}

// LatestName returns the base filename of the latest alias.
func LatestName(owner, name string) string {
	return fmt.Sprintf("%s_%s_%s%s", owner, name, latestTag, Extension)
}

// ParseName splits an archive base filename into repository identity and
// capture timestamp. GitHub owner names cannot contain underscores, so the
// first underscore separates owner from repository name. isLatest is set
// for the alias form, with a zero timestamp.
func ParseName(filename string) (owner, name string, ts time.Time, isLatest bool, err error) {
	base := strings.TrimSuffix(filename, Extension)
	if base == filename {
		return "", "", time.Time{}, false, fmt.Errorf("not an archive name: %s", filename)
	}

	if strings.HasSuffix(base, "_"+latestTag) {
		base = strings.TrimSuffix(base, "_"+latestTag)
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", time.Time{}, false, fmt.Errorf("malformed archive name: %s", filename)
		}

		return parts[0], parts[1], time.Time{}, true, nil
	}

	// The timestamp occupies the fixed-width tail of the name.
	if len(base) < len(TimestampLayout)+1 {
		return "", "", time.Time{}, false, fmt.Errorf("malformed archive name: %s", filename)
	}

	tsPart := base[len(base)-len(TimestampLayout):]
	rest := strings.TrimSuffix(base[:len(base)-len(TimestampLayout)], "_")

	ts, err = time.Parse(TimestampLayout, tsPart)
	if err != nil {
		return "", "", time.Time{}, false, fmt.Errorf("malformed archive timestamp in %s: %w", filename, err)
	}

	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", time.Time{}, false, fmt.Errorf("malformed archive name: %s", filename)
	}

	return parts[0], parts[1], ts, false, nil
}

// Store is the archive store rooted at a backup directory. Each repository
// gets its own subdirectory named {owner}_{name}.
type Store struct {
	Root string
}

// NewStore creates a store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// RepoDir returns the per-repository subdirectory.
func (s *Store) RepoDir(owner, name string) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s_%s", owner, name))
}

// ArchivePath returns the full path of the timestamped archive for ts.
func (s *Store) ArchivePath(owner, name string, ts time.Time) string {
	return filepath.Join(s.RepoDir(owner, name), ArchiveName(owner, name, ts))
}

// LatestPath returns the full path of the latest alias archive.
func (s *Store) LatestPath(owner, name string) string {
	return filepath.Join(s.RepoDir(owner, name), LatestName(owner, name))
}

// List returns the repository's timestamped archives, excluding the latest
// alias, sorted oldest first.
func (s *Store) List(owner, name string) ([]Descriptor, error) {
	dir := s.RepoDir(owner, name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list archive directory: %w", err)
	}

	var descs []Descriptor

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		o, n, ts, isLatest, err := ParseName(entry.Name())
		if err != nil || isLatest {
			continue
		}

		if o != owner || n != name {
			continue
		}

		descs = append(descs, Descriptor{
			Owner:     o,
			Name:      n,
			Timestamp: ts,
			Path:      filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Timestamp.Before(descs[j].Timestamp)
	})

	return descs, nil
}

// Prune enforces the retention count for a repository, deleting the oldest
// excess timestamped archives. The latest alias is never touched. A keep
// value of zero or less disables pruning. Returns the paths removed.
func (s *Store) Prune(owner, name string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	descs, err := s.List(owner, name)
	if err != nil {
		return nil, err
	}

	if len(descs) <= keep {
		return nil, nil
	}

	var removed []string

	for _, desc := range descs[:len(descs)-keep] {
		if err := os.Remove(desc.Path); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", desc.Path, err)
		}

		removed = append(removed, desc.Path)
	}

	return removed, nil
}

// WriteLatest overwrites the latest alias with a byte-identical copy of the
// archive at srcPath.
func (s *Store) WriteLatest(owner, name, srcPath string) error {
	return copyFile(srcPath, s.LatestPath(owner, name))
}

// FindArchives walks root and returns every archive file, recursing into
// per-repository subdirectories. Alias archives are included.
func FindArchives(root string) ([]string, error) {
	var paths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Mode().IsRegular() && strings.HasSuffix(info.Name(), Extension) {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(paths)

	return paths, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to copy archive: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to finalize copy: %w", err)
	}

	return os.Rename(tmp, dst)
}
