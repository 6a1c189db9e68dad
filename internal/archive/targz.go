package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/pgzip"
)

// Pack compresses the contents of srcDir into a tar.gz archive at outPath.
// Entries are stored relative to srcDir, so extraction reproduces the
// directory's contents at the extraction root.
func Pack(srcDir, outPath string) (err error) {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}

		if err != nil {
			_ = os.Remove(outPath)
		}
	}()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}

		header.Name = filepath.ToSlash(relPath)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(tw, f)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", srcDir, err)
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar stream: %w", err)
	}

	if err = gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize gzip stream: %w", err)
	}

	return nil
}

// Extract unpacks the tar.gz archive at archivePath into destDir. Entries
// escaping destDir are rejected.
func Extract(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("failed to read tar stream: %w", err)
		}

		target, err := securePath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)&0o777|0o700); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode)&0o777)
			if err != nil {
				return err
			}

			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()

				return fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}

			if err := f.Close(); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}

		default:
			// Hard links and device nodes do not occur in git mirrors.
		}
	}

	return nil
}

// ListEntries decompresses the archive and returns its internal file
// listing. Any read error means the container is unreadable.
func ListEntries(archivePath string) ([]string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)

	var names []string

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read tar stream: %w", err)
		}

		names = append(names, header.Name)

		// Drain the entry so the full stream CRC is verified.
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", header.Name, err)
		}
	}

	return names, nil
}

func securePath(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(destDir, filepath.FromSlash(name)))
	if cleaned != destDir && !strings.HasPrefix(cleaned, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction root: %s", name)
	}

	return cleaned, nil
}
