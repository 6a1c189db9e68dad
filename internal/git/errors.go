package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound indicates the git binary is not on PATH.
var ErrGitNotFound = errors.New("git executable not found in PATH")

// GitError represents a git command error
type GitError struct {
	ExitCode int
	Stderr   string
	Args     []string
	err      error
}

func (e *GitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("git %s failed: %v", strings.Join(e.Args, " "), e.err)
	}

	return fmt.Sprintf("git %s failed: %s", strings.Join(e.Args, " "), strings.TrimSpace(e.Stderr))
}

func (e *GitError) Unwrap() error {
	return e.err
}

// NewGitError creates a GitError from command output and error
func NewGitError(args []string, stderr string, err error) *GitError {
	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &GitError{
		ExitCode: exitCode,
		Stderr:   stderr,
		Args:     args,
		err:      err,
	}
}

// IsAuthRequired checks if the error indicates authentication was refused
func IsAuthRequired(err error) bool {
	return containsError(err, "authentication failed") || containsError(err, "permission denied")
}

// IsNotRepository checks if the error indicates not a git repository
func IsNotRepository(err error) bool {
	return containsError(err, "not a git repository")
}

func containsError(err error, msg string) bool {
	if err == nil {
		return false
	}

	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return strings.Contains(strings.ToLower(gitErr.Stderr), msg)
	}

	return strings.Contains(strings.ToLower(err.Error()), msg)
}
