package core

import (
	"errors"
	"testing"
)

func TestAuthError(t *testing.T) {
	err := &AuthError{Reason: "no token found"}

	expected := "authentication failed: no token found"
	if err.Error() != expected {
		t.Errorf("AuthError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestAuthError_Unwrap(t *testing.T) {
	innerErr := errors.New("401 bad credentials")
	err := &AuthError{Reason: "token rejected", Err: innerErr}

	if !errors.Is(err, innerErr) {
		t.Error("errors.Is should find the inner error")
	}
}

func TestScopeNotFoundError(t *testing.T) {
	err := &ScopeNotFoundError{Scope: "ghost-org"}

	expected := "scope not found: ghost-org"
	if err.Error() != expected {
		t.Errorf("ScopeNotFoundError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNetworkError(t *testing.T) {
	innerErr := errors.New("connection refused")
	err := &NetworkError{Operation: "mirror clone", Err: innerErr}

	expected := "mirror clone failed: connection refused"
	if err.Error() != expected {
		t.Errorf("NetworkError.Error() = %q, want %q", err.Error(), expected)
	}

	if !errors.Is(err, innerErr) {
		t.Error("errors.Is should find the inner error")
	}
}

func TestStructuralError(t *testing.T) {
	err := &StructuralError{Path: "a.tar.gz", Missing: []string{"HEAD", "objects"}}

	expected := "archive a.tar.gz is not a valid mirror: missing HEAD, objects"
	if err.Error() != expected {
		t.Errorf("StructuralError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{Dest: "octocat/hello-world"}

	expected := "destination already exists: octocat/hello-world (use mirror-force to overwrite)"
	if err.Error() != expected {
		t.Errorf("ConflictError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestUserDeclinedError(t *testing.T) {
	err := &UserDeclinedError{Action: "mirror-force push"}

	expected := "mirror-force push declined by user, no changes made"
	if err.Error() != expected {
		t.Errorf("UserDeclinedError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"no such host", errors.New("lookup github.com: no such host"), true},
		{"auth failure", errors.New("401 bad credentials"), false},
		{"generic", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.want {
				t.Errorf("IsNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
