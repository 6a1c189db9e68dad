package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "refs", "heads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), []byte("[core]\n\tbare = true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "refs", "heads", "main"), []byte("abc123\n"), 0o644))

	return dir
}

func TestPackExtract_RoundTrip(t *testing.T) {
	src := makeTree(t)
	out := filepath.Join(t.TempDir(), "repo.tar.gz")

	require.NoError(t, Pack(src, out))

	dest := t.TempDir()
	require.NoError(t, Extract(out, dest))

	head, err := os.ReadFile(filepath.Join(dest, "HEAD"))
	require.NoError(t, err)
	require.Equal(t, "ref: refs/heads/main\n", string(head))

	ref, err := os.ReadFile(filepath.Join(dest, "refs", "heads", "main"))
	require.NoError(t, err)
	require.Equal(t, "abc123\n", string(ref))
}

func TestPack_PreservesSymlinks(t *testing.T) {
	src := makeTree(t)
	require.NoError(t, os.Symlink("HEAD", filepath.Join(src, "HEAD-link")))

	out := filepath.Join(t.TempDir(), "repo.tar.gz")
	require.NoError(t, Pack(src, out))

	dest := t.TempDir()
	require.NoError(t, Extract(out, dest))

	target, err := os.Readlink(filepath.Join(dest, "HEAD-link"))
	require.NoError(t, err)
	require.Equal(t, "HEAD", target)
}

func TestListEntries(t *testing.T) {
	src := makeTree(t)
	out := filepath.Join(t.TempDir(), "repo.tar.gz")

	require.NoError(t, Pack(src, out))

	entries, err := ListEntries(out)
	require.NoError(t, err)
	require.Contains(t, entries, "HEAD")
	require.Contains(t, entries, filepath.ToSlash(filepath.Join("refs", "heads", "main")))
}

func TestListEntries_DetectsTruncation(t *testing.T) {
	src := makeTree(t)
	out := filepath.Join(t.TempDir(), "repo.tar.gz")

	require.NoError(t, Pack(src, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(data), 30)

	// Chop the tail off; decompression or the tar stream must now fail.
	require.NoError(t, os.WriteFile(out, data[:len(data)/2], 0o644))

	_, err = ListEntries(out)
	require.Error(t, err)
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evil.tar.gz")

	f, err := os.Create(out)
	require.NoError(t, err)

	zw := pgzip.NewWriter(f)
	tw := tar.NewWriter(zw)

	content := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escape.txt",
		Mode: 0o644,
		Size: int64(len(content)),
	}))
	_, err = tw.Write(content)
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	require.Error(t, Extract(out, dest))

	_, err = os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	require.True(t, os.IsNotExist(err))
}
