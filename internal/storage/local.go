package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalSink copies archives into a secondary local directory, typically a
// mounted network share or external drive.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a sink writing into dir, creating it if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("local sink requires a directory")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}

	return &LocalSink{dir: dir}, nil
}

func (s *LocalSink) Name() string { return "local" }

func (s *LocalSink) Upload(_ context.Context, localPath, destName string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = in.Close() }()

	dest := filepath.Join(s.dir, destName)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp := dest + ".tmp"

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

		return err
	}

	return os.Rename(tmp, dest)
}
