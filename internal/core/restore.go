package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/go-github/v82/github"
	"github.com/inovacc/gitvault/internal/archive"
	"github.com/inovacc/gitvault/internal/git"
)

// RestoreMode is the closed set of restore strategies.
type RestoreMode int

const (
	// RestoreLocal clones the extracted mirror into a filesystem path.
	RestoreLocal RestoreMode = iota

	// RestoreRemoteCreate creates a new hosting-service repository and
	// mirror-pushes into it. Never overwrites an existing repository.
	RestoreRemoteCreate

	// RestoreMirrorForce force-overwrites all refs of an existing
	// hosting-service repository.
	RestoreMirrorForce
)

func (m RestoreMode) String() string {
	switch m {
	case RestoreLocal:
		return "local"
	case RestoreRemoteCreate:
		return "remote-create"
	case RestoreMirrorForce:
		return "mirror-force"
	default:
		return fmt.Sprintf("RestoreMode(%d)", int(m))
	}
}

// ParseRestoreMode converts a string to a RestoreMode. Unknown modes are an
// error; the set is closed.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch s {
	case "local":
		return RestoreLocal, nil
	case "remote-create":
		return RestoreRemoteCreate, nil
	case "mirror-force":
		return RestoreMirrorForce, nil
	default:
		return RestoreLocal, fmt.Errorf("unknown restore mode: %q (expected local, remote-create, or mirror-force)", s)
	}
}

// ConfirmPolicy resolves confirmation for destructive restores without the
// core blocking on a terminal.
type ConfirmPolicy int

const (
	// PromptCaller delegates to the Prompt callback supplied by the
	// invocation layer.
	PromptCaller ConfirmPolicy = iota

	// AutoApprove proceeds without asking.
	AutoApprove

	// AutoDeny refuses without asking.
	AutoDeny
)

// RestoreState tracks progress through the restore state machine.
type RestoreState int

const (
	StateIdle RestoreState = iota
	StateExtracting
	StateDispatching
	StateLocalRestore
	StateRemoteCreate
	StateMirrorPush
	StateLFSPush
	StateDone
	StateFailed
)

func (s RestoreState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateDispatching:
		return "dispatching"
	case StateLocalRestore:
		return "local-restore"
	case StateRemoteCreate:
		return "remote-create-and-push"
	case StateMirrorPush:
		return "mirror-force-push"
	case StateLFSPush:
		return "lfs-push"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("RestoreState(%d)", int(s))
	}
}

// RestoreOptions configures one restore invocation.
type RestoreOptions struct {
	Mode RestoreMode

	// Dest is a filesystem path for local mode, or "owner/name" for the
	// remote modes.
	Dest string

	// NewName overrides the repository name for remote-create.
	NewName string

	// Private sets the visibility of a repository created by remote-create.
	Private bool

	// Force skips confirmation for mirror-force and allows local restore to
	// replace an existing destination.
	Force bool

	// PushLFS pushes large-object payloads after a successful ref push.
	PushLFS bool

	Confirm ConfirmPolicy

	// Prompt is consulted when Confirm is PromptCaller.
	Prompt func(message string) (bool, error)

	// GitHub is required for the remote modes.
	GitHub *github.Client

	Logger *slog.Logger
}

// RestoreResult describes a completed restore, including partial-success
// conditions such as a failed LFS push after a successful ref push.
type RestoreResult struct {
	Mode      RestoreMode
	Dest      string
	LFSPushed bool
	Warnings  []string
}

// Restorer materializes one archive at one destination.
type Restorer struct {
	git    *git.Client
	opts   RestoreOptions
	logger *slog.Logger
	state  RestoreState

	// push mirrors all refs to a remote; replaced in tests.
	push func(ctx context.Context, mirrorDir, remoteURL string, force bool) error
}

// NewRestorer creates a restorer for the given options.
func NewRestorer(gitClient *git.Client, opts RestoreOptions) *Restorer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Restorer{
		git:    gitClient,
		opts:   opts,
		logger: logger,
		state:  StateIdle,
	}
	r.push = r.mirrorPush

	return r
}

func (r *Restorer) mirrorPush(ctx context.Context, mirrorDir, remoteURL string, force bool) error {
	return r.git.PushMirror(ctx, mirrorDir, remoteURL, force)
}

// State returns the restorer's current state.
func (r *Restorer) State() RestoreState {
	return r.state
}

func (r *Restorer) transition(next RestoreState) {
	r.logger.Debug("restore state transition",
		slog.String("from", r.state.String()),
		slog.String("to", next.String()),
	)

	r.state = next
}

func (r *Restorer) fail(err error) error {
	r.transition(StateFailed)
	return err
}

// Run extracts the archive and dispatches to the configured restore
// strategy. The extraction directory is removed on every exit path.
func (r *Restorer) Run(ctx context.Context, archivePath string) (*RestoreResult, error) {
	result := &RestoreResult{Mode: r.opts.Mode, Dest: r.opts.Dest}

	workDir, err := os.MkdirTemp("", "gitvault-restore-")
	if err != nil {
		return nil, r.fail(fmt.Errorf("failed to create extraction directory: %w", err))
	}

	defer func() { _ = os.RemoveAll(workDir) }()

	r.transition(StateExtracting)

	if err := archive.Extract(archivePath, workDir); err != nil {
		return nil, r.fail(&CorruptArchiveError{Path: archivePath, Err: err})
	}

	mirrorDir, ok := findMirrorRoot(workDir)
	if !ok || !git.IsBareMirror(mirrorDir) {
		missing := []string{"HEAD"}
		if ok {
			missing = git.MissingMirrorParts(mirrorDir)
		}

		return nil, r.fail(&StructuralError{Path: archivePath, Missing: missing})
	}

	r.transition(StateDispatching)

	var remoteURL string

	switch r.opts.Mode {
	case RestoreLocal:
		r.transition(StateLocalRestore)
		err = r.restoreLocal(ctx, mirrorDir)

	case RestoreRemoteCreate:
		r.transition(StateRemoteCreate)
		result.Dest, remoteURL, err = r.restoreRemoteCreate(ctx, mirrorDir)

	case RestoreMirrorForce:
		r.transition(StateMirrorPush)
		remoteURL, err = r.restoreMirrorForce(ctx, mirrorDir)
	}

	if err != nil {
		return nil, r.fail(err)
	}

	if r.opts.PushLFS {
		warning := r.pushLFS(ctx, mirrorDir, remoteURL, result)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	r.transition(StateDone)

	return result, nil
}

func (r *Restorer) restoreLocal(ctx context.Context, mirrorDir string) error {
	dest := r.opts.Dest

	if _, err := os.Stat(dest); err == nil {
		if !r.opts.Force {
			return &ConflictError{Dest: dest}
		}

		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("failed to replace %s: %w", dest, err)
		}
	}

	if err := r.git.Clone(ctx, mirrorDir, dest); err != nil {
		return err
	}

	r.logger.Info("repository restored",
		slog.String("dest", dest),
	)

	return nil
}

// restoreRemoteCreate returns the effective destination, which differs from
// the configured one when NewName renames the repository.
func (r *Restorer) restoreRemoteCreate(ctx context.Context, mirrorDir string) (string, string, error) {
	if r.opts.GitHub == nil {
		return "", "", &AuthError{Reason: "remote-create requires an authenticated client"}
	}

	owner, name, err := SplitFullName(r.opts.Dest)
	if err != nil {
		return "", "", err
	}

	if r.opts.NewName != "" {
		name = r.opts.NewName
	}

	fullName := owner + "/" + name

	// Never silently overwrite: an existing repository is a conflict and the
	// caller is directed to mirror-force.
	_, resp, err := r.opts.GitHub.Repositories.Get(ctx, owner, name)
	if err == nil {
		return "", "", &ConflictError{Dest: fullName}
	}

	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return "", "", &NetworkError{Operation: "destination lookup", Err: err}
	}

	login, err := VerifyCredential(ctx, r.opts.GitHub)
	if err != nil {
		return "", "", err
	}

	// Creating under an organization needs the org name; under the
	// authenticated user it must be empty.
	org := owner
	if owner == login {
		org = ""
	}

	_, _, err = r.opts.GitHub.Repositories.Create(ctx, org, &github.Repository{
		Name:    github.Ptr(name),
		Private: github.Ptr(r.opts.Private),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create repository %s: %w", fullName, err)
	}

	remoteURL := fmt.Sprintf("https://github.com/%s.git", fullName)

	if err := r.push(ctx, mirrorDir, remoteURL, false); err != nil {
		return "", "", err
	}

	r.logger.Info("repository created and pushed",
		slog.String("dest", fullName),
		slog.Bool("private", r.opts.Private),
	)

	return fullName, remoteURL, nil
}

func (r *Restorer) restoreMirrorForce(ctx context.Context, mirrorDir string) (string, error) {
	owner, name, err := SplitFullName(r.opts.Dest)
	if err != nil {
		return "", err
	}

	fullName := owner + "/" + name

	if !r.opts.Force {
		approved, err := r.confirm(fmt.Sprintf(
			"Force-push will OVERWRITE all refs of %s, discarding destination-only history. Continue?", fullName))
		if err != nil {
			return "", err
		}

		if !approved {
			return "", &UserDeclinedError{Action: "mirror-force push"}
		}
	}

	remoteURL := fmt.Sprintf("https://github.com/%s.git", fullName)

	if err := r.push(ctx, mirrorDir, remoteURL, true); err != nil {
		return "", err
	}

	r.logger.Info("repository overwritten by force push",
		slog.String("dest", fullName),
	)

	return remoteURL, nil
}

func (r *Restorer) confirm(message string) (bool, error) {
	switch r.opts.Confirm {
	case AutoApprove:
		return true, nil
	case AutoDeny:
		return false, nil
	case PromptCaller:
		if r.opts.Prompt == nil {
			return false, nil
		}

		return r.opts.Prompt(message)
	default:
		return false, nil
	}
}

// pushLFS pushes large-object payloads after the primary ref push. Its
// failure never rolls back the completed push; the condition is reported as
// a partial success.
func (r *Restorer) pushLFS(ctx context.Context, mirrorDir, remoteURL string, result *RestoreResult) string {
	if r.opts.Mode == RestoreLocal {
		return "large-object push does not apply to local restore"
	}

	if !git.HasLFSPayloads(mirrorDir) {
		return ""
	}

	r.transition(StateLFSPush)

	if err := r.git.LFSPush(ctx, mirrorDir, remoteURL); err != nil {
		return fmt.Sprintf("refs pushed but large-object push failed: %v", err)
	}

	result.LFSPushed = true

	r.logger.Info("large-object payloads pushed",
		slog.String("dest", filepath.Base(remoteURL)),
	)

	return ""
}
