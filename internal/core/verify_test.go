package core

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/inovacc/gitvault/internal/archive"
	gitclient "github.com/inovacc/gitvault/internal/git"
	"github.com/stretchr/testify/require"
)

// makeBareMirror builds a real bare repository with one commit and one tag,
// and returns its path. Skips the test when git is not installed.
func makeBareMirror(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed, skipping")
	}

	workDir := filepath.Join(t.TempDir(), "work")

	runGit := func(dir string, args ...string) {
		t.Helper()

		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.com",
		)

		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	require.NoError(t, os.MkdirAll(workDir, 0o755))
	runGit(workDir, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "README.md"), []byte("# Test\n"), 0o644))
	runGit(workDir, "add", ".")
	runGit(workDir, "commit", "-m", "initial")
	runGit(workDir, "tag", "v1.0.0")

	mirrorDir := filepath.Join(t.TempDir(), "repo.git")
	runGit(filepath.Dir(mirrorDir), "clone", "--mirror", workDir, mirrorDir)

	return mirrorDir
}

func packMirror(t *testing.T, mirrorDir string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "repo.tar.gz")
	require.NoError(t, archive.Pack(mirrorDir, out))

	return out
}

func newTestVerifier(t *testing.T, opts VerifyOptions) *Verifier {
	t.Helper()

	gc, err := gitclient.NewClient("")
	if err != nil {
		t.Skip("git not installed, skipping")
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	return NewVerifier(gc, opts)
}

func TestVerifyArchive_HealthyMirror(t *testing.T) {
	mirrorDir := makeBareMirror(t)
	archivePath := packMirror(t, mirrorDir)

	verifier := newTestVerifier(t, VerifyOptions{})

	report, err := verifier.VerifyArchive(context.Background(), archivePath)
	require.NoError(t, err)

	require.Equal(t, 0, report.Errors, "healthy archive must have zero hard failures: %+v", report.Checks)
	require.True(t, report.OK())

	// Without a live repo the first five checks run, none short-circuited.
	require.Len(t, report.Checks, 5)
	require.Equal(t, CheckContainer, report.Checks[0].Name)
	require.Equal(t, CheckStructure, report.Checks[1].Name)
	require.Equal(t, CheckObjects, report.Checks[2].Name)
	require.Equal(t, CheckRefs, report.Checks[3].Name)
	require.Equal(t, CheckLFS, report.Checks[4].Name)
}

func TestVerifyArchive_QuickMode(t *testing.T) {
	mirrorDir := makeBareMirror(t)
	archivePath := packMirror(t, mirrorDir)

	verifier := newTestVerifier(t, VerifyOptions{Quick: true})

	report, err := verifier.VerifyArchive(context.Background(), archivePath)
	require.NoError(t, err)
	require.True(t, report.OK())
}

func TestVerifyArchive_TruncatedArchive(t *testing.T) {
	mirrorDir := makeBareMirror(t)
	archivePath := packMirror(t, mirrorDir)

	data, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(archivePath, data[:len(data)/3], 0o644))

	verifier := newTestVerifier(t, VerifyOptions{})

	report, err := verifier.VerifyArchive(context.Background(), archivePath)
	require.NoError(t, err)

	require.False(t, report.OK())
	require.Greater(t, report.Errors, 0)
	require.Equal(t, CheckContainer, report.Checks[0].Name)
	require.Equal(t, StatusFail, report.Checks[0].Status)

	// Later checks still ran and reported their own outcomes.
	require.Len(t, report.Checks, 5)
}

func TestVerifyArchive_NotAMirror(t *testing.T) {
	// A valid tarball of a directory that is not a bare repository: the
	// container check passes, the structure check fails.
	junk := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(junk, "data.txt"), []byte("hello"), 0o644))

	archivePath := packMirror(t, junk)

	verifier := newTestVerifier(t, VerifyOptions{})

	report, err := verifier.VerifyArchive(context.Background(), archivePath)
	require.NoError(t, err)

	require.False(t, report.OK())
	require.Equal(t, StatusPass, report.Checks[0].Status)
	require.Equal(t, StatusFail, report.Checks[1].Status)
}

func TestVerifyArchive_BranchlessMirrorWarns(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed, skipping")
	}

	// A freshly initialized bare repo has structure but no branches: checks
	// 1-3 pass, the ref inventory warns.
	mirrorDir := filepath.Join(t.TempDir(), "empty.git")

	cmd := exec.Command("git", "init", "--bare", mirrorDir)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git init --bare: %s", out)

	archivePath := packMirror(t, mirrorDir)

	verifier := newTestVerifier(t, VerifyOptions{})

	report, verr := verifier.VerifyArchive(context.Background(), archivePath)
	require.NoError(t, verr)

	require.True(t, report.OK(), "warnings must not fail verification: %+v", report.Checks)
	require.Greater(t, report.Warnings, 0)
	require.Equal(t, StatusWarn, report.Checks[3].Status)
}

func TestVerifyDirectory(t *testing.T) {
	mirrorDir := makeBareMirror(t)

	dir := t.TempDir()
	require.NoError(t, archive.Pack(mirrorDir, filepath.Join(dir, "octocat_repo_2026-08-30_03-00-00.tar.gz")))
	require.NoError(t, archive.Pack(mirrorDir, filepath.Join(dir, "octocat_repo_latest.tar.gz")))

	verifier := newTestVerifier(t, VerifyOptions{})

	reports, err := verifier.VerifyDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	for _, report := range reports {
		require.True(t, report.OK())
	}
}

func TestVerifyDirectory_Empty(t *testing.T) {
	verifier := newTestVerifier(t, VerifyOptions{})

	_, err := verifier.VerifyDirectory(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("CheckStatus.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestReport_WarningsNeverFail(t *testing.T) {
	report := &Report{}
	report.add(CheckRefs, StatusWarn, "no branches")
	report.add(CheckLFS, StatusWarn, "payloads missing")

	require.True(t, report.OK())
	require.Equal(t, 2, report.Warnings)
	require.Equal(t, 0, report.Errors)
}
