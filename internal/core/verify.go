package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v82/github"
	"github.com/inovacc/gitvault/internal/archive"
	"github.com/inovacc/gitvault/internal/git"
)

// Verification check names, in execution order.
const (
	CheckContainer = "container-integrity"
	CheckStructure = "structure"
	CheckObjects   = "object-graph"
	CheckRefs      = "ref-inventory"
	CheckLFS       = "lfs-payloads"
	CheckLive      = "live-comparison"
)

// CheckStatus is the outcome of one verification check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "FAIL"
	default:
		return fmt.Sprintf("CheckStatus(%d)", int(s))
	}
}

// CheckResult is one entry of a verification report.
type CheckResult struct {
	Name   string
	Status CheckStatus
	Detail string
}

// Report is the transient result of verifying one archive. It is returned
// to the caller and never persisted.
type Report struct {
	Archive  string
	Checks   []CheckResult
	Errors   int
	Warnings int
}

func (r *Report) add(name string, status CheckStatus, detail string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: status, Detail: detail})

	switch status {
	case StatusFail:
		r.Errors++
	case StatusWarn:
		r.Warnings++
	case StatusPass:
	}
}

// OK reports whether the archive passed: determined solely by the
// hard-failure count, never by warnings.
func (r *Report) OK() bool {
	return r.Errors == 0
}

// VerifyOptions configures a verification run.
type VerifyOptions struct {
	// Quick restricts the object-graph check to connectivity, skipping deep
	// payload validation.
	Quick bool

	// LiveRepo ("owner/name"), when set together with GitHub, enables the
	// live comparison against the remote repository.
	LiveRepo string
	GitHub   *github.Client

	Logger *slog.Logger
}

// Verifier runs the fixed integrity-check sequence against archives.
type Verifier struct {
	git    *git.Client
	opts   VerifyOptions
	logger *slog.Logger
}

// NewVerifier creates a verifier. gitClient is required for the
// object-graph check and the live comparison's remote listing.
func NewVerifier(gitClient *git.Client, opts VerifyOptions) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{git: gitClient, opts: opts, logger: logger}
}

// VerifyArchive runs every check against one archive. Checks never
// short-circuit: each runs even when an earlier one failed, reporting its
// own outcome. The returned error covers environment problems only (e.g.
// temp directory creation), not archive defects.
func (v *Verifier) VerifyArchive(ctx context.Context, archivePath string) (*Report, error) {
	report := &Report{Archive: archivePath}

	workDir, err := os.MkdirTemp("", "gitvault-verify-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	defer func() { _ = os.RemoveAll(workDir) }()

	// 1. Container integrity
	mirrorDir := ""
	entries, listErr := archive.ListEntries(archivePath)

	switch {
	case listErr != nil:
		report.add(CheckContainer, StatusFail, (&CorruptArchiveError{Path: archivePath, Err: listErr}).Error())
	default:
		if err := archive.Extract(archivePath, workDir); err != nil {
			report.add(CheckContainer, StatusFail, (&CorruptArchiveError{Path: archivePath, Err: err}).Error())
		} else {
			report.add(CheckContainer, StatusPass, fmt.Sprintf("%d entries", len(entries)))
		}
	}

	if root, ok := findMirrorRoot(workDir); ok {
		mirrorDir = root
	}

	// 2. Structural validity
	switch {
	case mirrorDir == "":
		report.add(CheckStructure, StatusFail, "no mirror-clone structure found in archive")
	default:
		if missing := git.MissingMirrorParts(mirrorDir); len(missing) > 0 {
			report.add(CheckStructure, StatusFail, (&StructuralError{Path: archivePath, Missing: missing}).Error())
		} else {
			report.add(CheckStructure, StatusPass, "HEAD, config, objects, refs present")
		}
	}

	// 3. Object graph integrity
	v.checkObjects(ctx, report, archivePath, mirrorDir)

	// 4. Reference inventory
	branches, tags := v.checkRefs(report, mirrorDir)

	// 5. Large-object payload presence
	v.checkLFS(ctx, report, mirrorDir)

	// 6. Live comparison (opt-in)
	if v.opts.LiveRepo != "" {
		v.checkLive(ctx, report, mirrorDir, branches+tags)
	}

	v.logger.Info("archive verified",
		slog.String("archive", filepath.Base(archivePath)),
		slog.Int("errors", report.Errors),
		slog.Int("warnings", report.Warnings),
	)

	return report, nil
}

// VerifyDirectory verifies every archive below dir independently; one
// archive's failure does not prevent verification of the others.
func (v *Verifier) VerifyDirectory(ctx context.Context, dir string) ([]*Report, error) {
	paths, err := archive.FindArchives(dir)
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no archives found under %s", dir)
	}

	reports := make([]*Report, 0, len(paths))

	for _, path := range paths {
		report, err := v.VerifyArchive(ctx, path)
		if err != nil {
			return reports, err
		}

		reports = append(reports, report)
	}

	return reports, nil
}

func (v *Verifier) checkObjects(ctx context.Context, report *Report, archivePath, mirrorDir string) {
	if mirrorDir == "" {
		report.add(CheckObjects, StatusFail, "mirror not extracted, object store unavailable")
		return
	}

	if v.git == nil {
		report.add(CheckObjects, StatusFail, "git executable unavailable for object validation")
		return
	}

	output, err := v.git.Fsck(ctx, mirrorDir, v.opts.Quick)
	if err != nil {
		detail := strings.TrimSpace(output)
		if detail == "" {
			detail = err.Error()
		}

		report.add(CheckObjects, StatusFail, (&IntegrityError{Path: archivePath, Detail: detail}).Error())

		return
	}

	mode := "thorough"
	if v.opts.Quick {
		mode = "connectivity-only"
	}

	report.add(CheckObjects, StatusPass, mode)
}

func (v *Verifier) checkRefs(report *Report, mirrorDir string) (branches, tags int) {
	if mirrorDir == "" {
		report.add(CheckRefs, StatusWarn, "mirror unavailable, references not counted")
		return 0, 0
	}

	branches, tags, err := countRefs(mirrorDir)
	if err != nil {
		report.add(CheckRefs, StatusWarn, fmt.Sprintf("failed to read references: %v", err))
		return 0, 0
	}

	detail := fmt.Sprintf("%d branches, %d tags", branches, tags)

	// Branch-less mirrors occur legitimately; flag them without failing.
	if branches == 0 {
		report.add(CheckRefs, StatusWarn, detail+" (no branches)")
		return branches, tags
	}

	report.add(CheckRefs, StatusPass, detail)

	return branches, tags
}

func (v *Verifier) checkLFS(ctx context.Context, report *Report, mirrorDir string) {
	if mirrorDir == "" {
		report.add(CheckLFS, StatusWarn, "mirror unavailable, payloads not checked")
		return
	}

	indicated := git.HasLFSPayloads(mirrorDir)
	if !indicated && v.git != nil {
		indicated = v.git.UsesLFS(ctx, mirrorDir)
	}

	if !indicated {
		report.add(CheckLFS, StatusPass, "no large-object usage detected")
		return
	}

	if git.HasLFSPayloads(mirrorDir) {
		report.add(CheckLFS, StatusPass, "payload files present")
		return
	}

	// A degraded backup missing payloads is tolerated and flagged.
	report.add(CheckLFS, StatusWarn, "repository tracks large objects but archive has no payload files")
}

// checkLive compares the archive against the live remote. Drift between
// backup time and verification time is expected, so every mismatch is a
// warning, never a failure.
func (v *Verifier) checkLive(ctx context.Context, report *Report, mirrorDir string, archiveRefCount int) {
	owner, name, err := SplitFullName(v.opts.LiveRepo)
	if err != nil {
		report.add(CheckLive, StatusWarn, err.Error())
		return
	}

	if v.opts.GitHub == nil || v.git == nil {
		report.add(CheckLive, StatusWarn, "live comparison requires an authenticated client")
		return
	}

	// The default branch comes from the hosting API rather than parsing the
	// remote's symbolic HEAD line, so unusual default branches work.
	repo, _, err := v.opts.GitHub.Repositories.Get(ctx, owner, name)
	if err != nil {
		report.add(CheckLive, StatusWarn, fmt.Sprintf("failed to query remote repository: %v", err))
		return
	}

	remoteRefs, err := v.git.LsRemote(ctx, fmt.Sprintf("https://github.com/%s/%s.git", owner, name))
	if err != nil {
		report.add(CheckLive, StatusWarn, fmt.Sprintf("failed to list remote references: %v", err))
		return
	}

	if len(remoteRefs) == 0 {
		report.add(CheckLive, StatusWarn, "remote has no references")
		return
	}

	var drift []string

	remoteCount := 0
	defaultRef := "refs/heads/" + repo.GetDefaultBranch()
	remoteHead := ""

	for _, ref := range remoteRefs {
		// Peeled tag entries duplicate the tag ref itself.
		if strings.HasSuffix(ref.Name, "^{}") {
			continue
		}

		if strings.HasPrefix(ref.Name, "refs/heads/") || strings.HasPrefix(ref.Name, "refs/tags/") {
			remoteCount++
		}

		if ref.Name == defaultRef {
			remoteHead = ref.SHA
		}
	}

	archiveHead, err := resolveBranch(mirrorDir, repo.GetDefaultBranch())

	switch {
	case err != nil:
		drift = append(drift, fmt.Sprintf("archive lacks default branch %s", repo.GetDefaultBranch()))
	case remoteHead == "":
		drift = append(drift, fmt.Sprintf("remote lacks default branch %s", repo.GetDefaultBranch()))
	case archiveHead != remoteHead:
		drift = append(drift, fmt.Sprintf("default branch drifted: archive %s, remote %s",
			shortSHA(archiveHead), shortSHA(remoteHead)))
	}

	if remoteCount != archiveRefCount {
		drift = append(drift, fmt.Sprintf("reference count differs: archive %d, remote %d",
			archiveRefCount, remoteCount))
	}

	if len(drift) > 0 {
		report.add(CheckLive, StatusWarn, strings.Join(drift, "; "))
		return
	}

	report.add(CheckLive, StatusPass, "archive matches remote")
}

// findMirrorRoot locates the bare mirror inside an extraction directory:
// either the directory itself or a single top-level subdirectory.
func findMirrorRoot(dir string) (string, bool) {
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err == nil {
		return dir, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, "HEAD")); err == nil {
			return sub, true
		}
	}

	return "", false
}

// countRefs enumerates branch and tag references of a bare repository.
func countRefs(mirrorDir string) (branches, tags int, err error) {
	repo, err := gogit.PlainOpen(mirrorDir)
	if err != nil {
		return 0, 0, err
	}

	iter, err := repo.References()
	if err != nil {
		return 0, 0, err
	}

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		switch {
		case ref.Name().IsBranch():
			branches++
		case ref.Name().IsTag():
			tags++
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return branches, tags, nil
}

// resolveBranch returns the commit SHA of a branch in a bare repository.
func resolveBranch(mirrorDir, branch string) (string, error) {
	if mirrorDir == "" {
		return "", fmt.Errorf("mirror unavailable")
	}

	repo, err := gogit.PlainOpen(mirrorDir)
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", err
	}

	return ref.Hash().String(), nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}

	return sha
}
