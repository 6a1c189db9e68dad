package core

import (
	"fmt"
	"strings"
)

// AuthError indicates a missing or invalid credential. It is a fatal
// precondition failure raised before any other network operation.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ScopeNotFoundError indicates a requested user or organization does not
// exist. Fatal only when it is the sole requested scope.
type ScopeNotFoundError struct {
	Scope string
}

func (e *ScopeNotFoundError) Error() string {
	return fmt.Sprintf("scope not found: %s", e.Scope)
}

// NetworkError wraps transient connectivity failures. The pipeline does not
// retry; the caller decides.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CorruptArchiveError indicates container-level decompression or listing
// failure.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}

// StructuralError indicates the archive lacks required mirror components.
type StructuralError struct {
	Path    string
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("archive %s is not a valid mirror: missing %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// IntegrityError indicates object-graph validation failure.
type IntegrityError struct {
	Path   string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("object store of %s is corrupt: %s", e.Path, e.Detail)
}

// ConflictError indicates a restore destination already exists where
// creation was requested.
type ConflictError struct {
	Dest string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination already exists: %s (use mirror-force to overwrite)", e.Dest)
}

// UserDeclinedError indicates interactive confirmation was refused for a
// destructive operation.
type UserDeclinedError struct {
	Action string
}

func (e *UserDeclinedError) Error() string {
	return fmt.Sprintf("%s declined by user, no changes made", e.Action)
}

// IsNetworkError checks if an error looks like a transient network failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
	}

	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
