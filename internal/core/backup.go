package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/gitvault/internal/archive"
	"github.com/inovacc/gitvault/internal/git"
	"github.com/inovacc/gitvault/internal/storage"
)

// BackupOptions configures a backup run.
type BackupOptions struct {
	// BackupDir is the archive store root. It must be exclusively owned by
	// this invocation; concurrent runs need disjoint roots.
	BackupDir string

	// Retention is the maximum number of timestamped archives kept per
	// repository. Zero or less keeps everything.
	Retention int

	// Sink, if non-nil, receives completed archives. Upload failures are
	// warnings; the local archive stays valid.
	Sink storage.Sink

	Logger *slog.Logger
}

// RepoFailure records one repository whose backup failed.
type RepoFailure struct {
	Repo RepoRef
	Err  error
}

// BackupResult aggregates per-repository outcomes of one run.
type BackupResult struct {
	Succeeded int
	Failed    int
	Warnings  int
	Archives  []string
	Failures  []RepoFailure
}

// Engine produces backup archives and enforces retention, isolating
// failure per repository.
type Engine struct {
	store  *archive.Store
	git    *git.Client
	opts   BackupOptions
	logger *slog.Logger

	// capture materializes the mirror clone; replaced in tests.
	capture func(ctx context.Context, ref RepoRef, dest string) error

	// now supplies capture timestamps; replaced in tests.
	now func() time.Time
}

// NewEngine creates a backup engine writing into opts.BackupDir.
func NewEngine(gitClient *git.Client, opts BackupOptions) (*Engine, error) {
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:  archive.NewStore(opts.BackupDir),
		git:    gitClient,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}

	e.capture = e.mirrorCapture

	return e, nil
}

// Store exposes the engine's archive store.
func (e *Engine) Store() *archive.Store {
	return e.store
}

// Run backs up every repository in order. A failure is recorded and the
// next repository is still attempted; the aggregate result carries the
// success and failure counts.
func (e *Engine) Run(ctx context.Context, repos []RepoRef) *BackupResult {
	result := &BackupResult{}

	for _, ref := range repos {
		archivePath, warnings, err := e.backupOne(ctx, ref)
		result.Warnings += warnings

		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RepoFailure{Repo: ref, Err: err})

			e.logger.Error("backup failed",
				slog.String("repo", ref.FullName()),
				slog.String("error", err.Error()),
			)

			continue
		}

		result.Succeeded++
		result.Archives = append(result.Archives, archivePath)

		e.logger.Info("backup complete",
			slog.String("repo", ref.FullName()),
			slog.String("archive", filepath.Base(archivePath)),
		)
	}

	return result
}

// backupOne captures, packages, aliases, prunes, and optionally uploads one
// repository. The staging directory is removed on every exit path.
func (e *Engine) backupOne(ctx context.Context, ref RepoRef) (archivePath string, warnings int, err error) {
	stagingRoot := filepath.Join(e.opts.BackupDir, ".staging")
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create staging directory: %w", err)
	}

	staging, err := os.MkdirTemp(stagingRoot, fmt.Sprintf("%s_%s-", ref.Owner, ref.Name))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staging directory: %w", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			e.logger.Warn("failed to remove staging directory",
				slog.String("path", staging),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	mirrorDir := filepath.Join(staging, ref.Name+".git")

	if err := e.capture(ctx, ref, mirrorDir); err != nil {
		return "", 0, err
	}

	// Degraded backups missing large objects are still worth keeping.
	if e.git != nil && e.git.UsesLFS(ctx, mirrorDir) {
		if err := e.git.LFSFetch(ctx, mirrorDir); err != nil {
			warnings++

			e.logger.Warn("large-object fetch failed, archiving without payloads",
				slog.String("repo", ref.FullName()),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := os.MkdirAll(e.store.RepoDir(ref.Owner, ref.Name), 0o755); err != nil {
		return "", warnings, fmt.Errorf("failed to create archive directory: %w", err)
	}

	ts := e.now().UTC().Truncate(time.Second)
	outPath := e.store.ArchivePath(ref.Owner, ref.Name, ts)

	if err := archive.Pack(mirrorDir, outPath); err != nil {
		return "", warnings, fmt.Errorf("failed to package mirror: %w", err)
	}

	if err := e.store.WriteLatest(ref.Owner, ref.Name, outPath); err != nil {
		return "", warnings, fmt.Errorf("failed to update latest alias: %w", err)
	}

	// Pruning happens only after the new archive is durably written.
	pruned, err := e.store.Prune(ref.Owner, ref.Name, e.opts.Retention)
	if err != nil {
		return "", warnings, err
	}

	for _, path := range pruned {
		e.logger.Info("pruned archive beyond retention",
			slog.String("repo", ref.FullName()),
			slog.String("archive", filepath.Base(path)),
		)
	}

	warnings += e.upload(ctx, ref, outPath)

	return outPath, warnings, nil
}

func (e *Engine) upload(ctx context.Context, ref RepoRef, archivePath string) (warnings int) {
	if e.opts.Sink == nil {
		return 0
	}

	for _, path := range []string{archivePath, e.store.LatestPath(ref.Owner, ref.Name)} {
		destName := filepath.Base(path)

		if err := e.opts.Sink.Upload(ctx, path, destName); err != nil {
			warnings++

			e.logger.Warn("sink upload failed, local archive kept",
				slog.String("sink", e.opts.Sink.Name()),
				slog.String("archive", destName),
				slog.String("error", err.Error()),
			)
		}
	}

	return warnings
}

func (e *Engine) mirrorCapture(ctx context.Context, ref RepoRef, dest string) error {
	cloneURL := ref.CloneURL
	if cloneURL == "" {
		cloneURL = fmt.Sprintf("https://github.com/%s/%s.git", ref.Owner, ref.Name)
	}

	if err := e.git.MirrorClone(ctx, cloneURL, dest); err != nil {
		if IsNetworkError(err) {
			return &NetworkError{Operation: "mirror clone", Err: err}
		}

		return err
	}

	return nil
}
