// Package git wraps the git binary for mirror-level repository operations.
// Pattern inspired by github.com/cli/cli
package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client wraps git operations for mirror capture, validation, and restore.
type Client struct {
	GitPath string    // Path to git executable
	Token   string    // Bearer token supplied to https transfers via a credential helper
	Stderr  io.Writer // Progress output for interactive transfers
}

// NewClient creates a new git client. The token, if non-empty, is used to
// authenticate https transfers.
func NewClient(token string) (*Client, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, ErrGitNotFound
	}

	return &Client{
		GitPath: gitPath,
		Token:   token,
		Stderr:  os.Stderr,
	}, nil
}

// Command creates a git command rooted at repoDir (pass "" for no -C).
// Note: Do not set Stdout/Stderr if you plan to use CombinedOutput()
func (c *Client) Command(ctx context.Context, repoDir string, args ...string) *exec.Cmd {
	if repoDir != "" {
		args = append([]string{"-C", repoDir}, args...)
	}

	cmd := exec.CommandContext(ctx, c.GitPath, args...)
	if env := c.credentialEnv(); env != nil {
		cmd.Env = append(os.Environ(), env...)
	}

	return cmd
}

// credentialEnv routes https authentication through an inline credential
// helper configured over the environment. The token never appears in the
// process argument list; the helper reads it back out of the child's
// environment at transfer time.
func (c *Client) credentialEnv() []string {
	if c.Token == "" {
		return nil
	}

	return []string{
		"GIT_TERMINAL_PROMPT=0",
		"GITVAULT_TOKEN=" + c.Token,
		"GIT_CONFIG_COUNT=2",
		"GIT_CONFIG_KEY_0=credential.helper",
		"GIT_CONFIG_VALUE_0=",
		"GIT_CONFIG_KEY_1=credential.helper",
		`GIT_CONFIG_VALUE_1=!f() { echo username=x-access-token; echo "password=${GITVAULT_TOKEN}"; }; f`,
	}
}

// run executes a git command and converts failures into *GitError.
func (c *Client) run(ctx context.Context, repoDir string, args ...string) error {
	cmd := c.Command(ctx, repoDir, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return NewGitError(args, string(output), err)
	}

	return nil
}

// MirrorClone produces a full-fidelity bare mirror of remoteURL at dest:
// all refs, all history.
func (c *Client) MirrorClone(ctx context.Context, remoteURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create clone parent directory: %w", err)
	}

	return c.run(ctx, "", "clone", "--mirror", remoteURL, dest)
}

// Clone performs a plain clone from src (typically a local bare mirror) to dest.
func (c *Client) Clone(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create clone parent directory: %w", err)
	}

	return c.run(ctx, "", "clone", src, dest)
}

// PushMirror pushes all refs of the bare repository at repoDir to remoteURL,
// overwriting the destination's refs when force is set.
func (c *Client) PushMirror(ctx context.Context, repoDir, remoteURL string, force bool) error {
	args := []string{"push", "--mirror"}
	if force {
		args = append(args, "--force")
	}

	args = append(args, remoteURL)

	return c.run(ctx, repoDir, args...)
}

// UsesLFS reports whether the mirrored repository tracks files through
// git-lfs, by looking for an lfs filter in the HEAD .gitattributes.
func (c *Client) UsesLFS(ctx context.Context, repoDir string) bool {
	cmd := c.Command(ctx, repoDir, "grep", "-q", "filter=lfs", "HEAD", "--", ".gitattributes")

	return cmd.Run() == nil
}

// LFSFetch retrieves all large-object payloads for the bare repository.
func (c *Client) LFSFetch(ctx context.Context, repoDir string) error {
	return c.run(ctx, repoDir, "lfs", "fetch", "--all")
}

// LFSPush pushes all large-object payloads to remoteURL.
func (c *Client) LFSPush(ctx context.Context, repoDir, remoteURL string) error {
	return c.run(ctx, repoDir, "lfs", "push", "--all", remoteURL)
}

// Fsck validates the object graph of the repository at repoDir.
// connectivityOnly skips deep payload checks (quick mode). The combined
// output is returned for reporting on failure.
func (c *Client) Fsck(ctx context.Context, repoDir string, connectivityOnly bool) (string, error) {
	args := []string{"fsck", "--no-progress"}
	if connectivityOnly {
		args = append(args, "--connectivity-only")
	} else {
		args = append(args, "--full")
	}

	cmd := c.Command(ctx, repoDir, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), NewGitError(args, string(output), err)
	}

	return string(output), nil
}

// RemoteRef is one entry of a remote's reference listing.
type RemoteRef struct {
	SHA  string
	Name string
}

// LsRemote lists the references advertised by remoteURL.
func (c *Client) LsRemote(ctx context.Context, remoteURL string) ([]RemoteRef, error) {
	args := []string{"ls-remote", remoteURL}
	cmd := c.Command(ctx, "", args...)

	output, err := cmd.Output()
	if err != nil {
		return nil, NewGitError(args, "", err)
	}

	return ParseRemoteRefs(string(output)), nil
}

// ParseRemoteRefs parses `git ls-remote` output into RemoteRef entries.
func ParseRemoteRefs(output string) []RemoteRef {
	var refs []RemoteRef

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}

		refs = append(refs, RemoteRef{SHA: parts[0], Name: parts[1]})
	}

	return refs
}

// HasLFSPayloads reports whether the bare repository at repoDir has at least
// one large-object payload file on disk.
func HasLFSPayloads(repoDir string) bool {
	lfsDir := filepath.Join(repoDir, "lfs", "objects")

	found := false
	_ = filepath.Walk(lfsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // missing lfs dir means no payloads
		}

		if info.Mode().IsRegular() && info.Size() > 0 {
			found = true
			return filepath.SkipAll
		}

		return nil
	})

	return found
}

// IsBareMirror checks whether dir contains the minimum components of a bare
// git mirror: HEAD, config, an object store, and a refs namespace.
func IsBareMirror(dir string) bool {
	return len(MissingMirrorParts(dir)) == 0
}

// MissingMirrorParts returns the names of required bare-mirror components
// absent from dir.
func MissingMirrorParts(dir string) []string {
	var missing []string

	for _, part := range []struct {
		name string
		dir  bool
	}{
		{"HEAD", false},
		{"config", false},
		{"objects", true},
		{"refs", true},
	} {
		info, err := os.Stat(filepath.Join(dir, part.name))
		if err != nil || info.IsDir() != part.dir {
			missing = append(missing, part.name)
		}
	}

	return missing
}
