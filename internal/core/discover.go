package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v82/github"
)

// discoverPageSize is the fixed page size requested from the hosting API.
const discoverPageSize = 100

// RepoRef identifies a remotely hosted repository. Immutable once
// discovered within a run.
type RepoRef struct {
	Owner         string
	Name          string
	Private       bool
	Fork          bool
	Archived      bool
	CloneURL      string
	DefaultBranch string
}

// FullName returns the owner/name identity of the repository.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// listPageFunc fetches one page of repositories. Implementations must
// request pages of discoverPageSize.
type listPageFunc func(ctx context.Context, page int) ([]*github.Repository, error)

// repoLister abstracts the hosting API's repository listings so tests can
// inject fakes.
type repoLister interface {
	ListByOrg(ctx context.Context, org string, page int) ([]*github.Repository, error)
	ListByUser(ctx context.Context, user string, page int) ([]*github.Repository, error)
	ListSelf(ctx context.Context, page int) ([]*github.Repository, error)
}

// githubLister is the production repoLister backed by the GitHub API.
type githubLister struct {
	client *github.Client
}

func (l *githubLister) ListByOrg(ctx context.Context, org string, page int) ([]*github.Repository, error) {
	opt := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: discoverPageSize},
	}

	repos, _, err := l.client.Repositories.ListByOrg(ctx, org, opt)

	return repos, err
}

func (l *githubLister) ListByUser(ctx context.Context, user string, page int) ([]*github.Repository, error) {
	opt := &github.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{Page: page, PerPage: discoverPageSize},
	}

	repos, _, err := l.client.Repositories.ListByUser(ctx, user, opt)

	return repos, err
}

func (l *githubLister) ListSelf(ctx context.Context, page int) ([]*github.Repository, error) {
	opt := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner",
		ListOptions: github.ListOptions{Page: page, PerPage: discoverPageSize},
	}

	repos, _, err := l.client.Repositories.ListByAuthenticatedUser(ctx, opt)

	return repos, err
}

// paginate drains a page sequence until a short page, an empty page, or an
// error. An error on the first page is fatal; an error on a later page
// terminates pagination normally and the partial result is returned, so
// callers cannot distinguish an exhausted scope from a scope that errored
// after page one.
func paginate(ctx context.Context, fetch listPageFunc, logger *slog.Logger) ([]*github.Repository, error) {
	var all []*github.Repository

	for page := 1; ; page++ {
		repos, err := fetch(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}

			logger.Debug("pagination terminated by error on later page",
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)

			break
		}

		if len(repos) == 0 {
			break
		}

		all = append(all, repos...)

		if len(repos) < discoverPageSize {
			break
		}
	}

	return all, nil
}

// DiscoverOptions selects the scopes and filters of a discovery run.
type DiscoverOptions struct {
	// Scopes; at least one must be set. Self targets the authenticated user.
	Org  string
	User string
	Self bool

	// Filters, applied as independent predicates after merging.
	PublicOnly      bool
	IncludeForks    bool
	IncludeArchived bool

	// Limit truncates the filtered set to the first N entries. Zero means
	// no limit.
	Limit int

	Logger *slog.Logger
}

func (o DiscoverOptions) scopeCount() int {
	count := 0
	if o.Org != "" {
		count++
	}

	if o.User != "" {
		count++
	}

	if o.Self {
		count++
	}

	return count
}

// Discoverer enumerates candidate repositories from a hosting account or
// organization.
type Discoverer struct {
	lister repoLister
	logger *slog.Logger
}

// NewDiscoverer creates a discoverer backed by an authenticated client.
func NewDiscoverer(client *github.Client, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Discoverer{lister: &githubLister{client: client}, logger: logger}
}

// Discover produces a deduplicated, filtered set of repository references
// from the requested scopes. A missing scope is fatal only when it is the
// sole requested scope; on a secondary scope it degrades to an empty
// contribution.
func (d *Discoverer) Discover(ctx context.Context, opts DiscoverOptions) ([]RepoRef, error) {
	totalScopes := opts.scopeCount()
	if totalScopes == 0 {
		return nil, fmt.Errorf("no discovery scope: provide an organization, a user, or the authenticated account")
	}

	logger := opts.Logger
	if logger == nil {
		logger = d.logger
	}

	var (
		merged []RepoRef
		seen   = make(map[string]struct{})
	)

	collect := func(scopeName string, fetch listPageFunc) error {
		repos, err := paginate(ctx, fetch, logger)
		if err != nil {
			if isNotFound(err) {
				scopeErr := &ScopeNotFoundError{Scope: scopeName}
				if totalScopes == 1 {
					return scopeErr
				}

				logger.Warn("scope not found, contributing nothing",
					slog.String("scope", scopeName),
				)

				return nil
			}

			return err
		}

		logger.Info("scope enumerated",
			slog.String("scope", scopeName),
			slog.Int("count", len(repos)),
		)

		for _, repo := range repos {
			ref := toRef(repo)

			key := ref.FullName()
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			merged = append(merged, ref)
		}

		return nil
	}

	if opts.Org != "" {
		if err := collect(opts.Org, d.listByOrg(opts.Org)); err != nil {
			return nil, err
		}
	}

	if opts.User != "" {
		if err := collect(opts.User, d.listByUser(opts.User)); err != nil {
			return nil, err
		}
	}

	if opts.Self {
		if err := collect("authenticated user", d.listSelf()); err != nil {
			return nil, err
		}
	}

	filtered := filterRepos(merged, opts)

	logger.Info("discovery complete",
		slog.Int("merged", len(merged)),
		slog.Int("after_filters", len(filtered)),
	)

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	return filtered, nil
}

func (d *Discoverer) listByOrg(org string) listPageFunc {
	return func(ctx context.Context, page int) ([]*github.Repository, error) {
		return d.lister.ListByOrg(ctx, org, page)
	}
}

func (d *Discoverer) listByUser(user string) listPageFunc {
	return func(ctx context.Context, page int) ([]*github.Repository, error) {
		return d.lister.ListByUser(ctx, user, page)
	}
}

func (d *Discoverer) listSelf() listPageFunc {
	return func(ctx context.Context, page int) ([]*github.Repository, error) {
		return d.lister.ListSelf(ctx, page)
	}
}

// filterRepos applies the visibility, fork, and archived predicates. The
// predicates are independent and idempotent.
func filterRepos(repos []RepoRef, opts DiscoverOptions) []RepoRef {
	filtered := make([]RepoRef, 0, len(repos))

	for _, repo := range repos {
		if opts.PublicOnly && repo.Private {
			continue
		}

		if !opts.IncludeForks && repo.Fork {
			continue
		}

		if !opts.IncludeArchived && repo.Archived {
			continue
		}

		filtered = append(filtered, repo)
	}

	return filtered
}

func toRef(repo *github.Repository) RepoRef {
	return RepoRef{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		Private:       repo.GetPrivate(),
		Fork:          repo.GetFork(),
		Archived:      repo.GetArchived(),
		CloneURL:      repo.GetCloneURL(),
		DefaultBranch: repo.GetDefaultBranch(),
	}
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}

	return false
}
