package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/go-github/v82/github"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeRepo(owner, name string) *github.Repository {
	return &github.Repository{
		Owner: &github.User{Login: github.Ptr(owner)},
		Name:  github.Ptr(name),
	}
}

func fakePage(owner string, start, count int) []*github.Repository {
	repos := make([]*github.Repository, count)
	for i := range repos {
		repos[i] = fakeRepo(owner, fmt.Sprintf("repo-%d", start+i))
	}

	return repos
}

func TestPaginate_DrainsFullPages(t *testing.T) {
	// Two full pages then a short one: exactly three requests, all kept.
	pages := [][]*github.Repository{
		fakePage("octocat", 0, discoverPageSize),
		fakePage("octocat", discoverPageSize, discoverPageSize),
		fakePage("octocat", 2*discoverPageSize, 7),
	}

	requests := 0
	fetch := func(ctx context.Context, page int) ([]*github.Repository, error) {
		requests++

		if page > len(pages) {
			t.Fatalf("requested page %d past the short page", page)
		}

		return pages[page-1], nil
	}

	repos, err := paginate(context.Background(), fetch, discardLogger())
	if err != nil {
		t.Fatalf("paginate() error = %v", err)
	}

	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}

	if len(repos) != 2*discoverPageSize+7 {
		t.Errorf("len(repos) = %d, want %d", len(repos), 2*discoverPageSize+7)
	}
}

func TestPaginate_EmptyFirstPage(t *testing.T) {
	fetch := func(ctx context.Context, page int) ([]*github.Repository, error) {
		return nil, nil
	}

	repos, err := paginate(context.Background(), fetch, discardLogger())
	if err != nil {
		t.Fatalf("paginate() error = %v", err)
	}

	if len(repos) != 0 {
		t.Errorf("len(repos) = %d, want 0", len(repos))
	}
}

func TestPaginate_FirstPageErrorIsFatal(t *testing.T) {
	wantErr := errors.New("boom")
	fetch := func(ctx context.Context, page int) ([]*github.Repository, error) {
		return nil, wantErr
	}

	_, err := paginate(context.Background(), fetch, discardLogger())
	if !errors.Is(err, wantErr) {
		t.Fatalf("paginate() error = %v, want %v", err, wantErr)
	}
}

func TestPaginate_LaterPageErrorKeepsPartial(t *testing.T) {
	fetch := func(ctx context.Context, page int) ([]*github.Repository, error) {
		if page == 1 {
			return fakePage("octocat", 0, discoverPageSize), nil
		}

		return nil, errors.New("rate limited")
	}

	repos, err := paginate(context.Background(), fetch, discardLogger())
	if err != nil {
		t.Fatalf("paginate() error = %v, want partial result", err)
	}

	if len(repos) != discoverPageSize {
		t.Errorf("len(repos) = %d, want %d", len(repos), discoverPageSize)
	}
}

func TestFilterRepos(t *testing.T) {
	repos := []RepoRef{
		{Owner: "o", Name: "plain"},
		{Owner: "o", Name: "fork-1", Fork: true},
		{Owner: "o", Name: "fork-2", Fork: true},
		{Owner: "o", Name: "secret", Private: true},
		{Owner: "o", Name: "old", Archived: true},
	}

	tests := []struct {
		name string
		opts DiscoverOptions
		want []string
	}{
		{
			name: "defaults drop forks and archived",
			opts: DiscoverOptions{},
			want: []string{"plain", "secret"},
		},
		{
			name: "public only",
			opts: DiscoverOptions{PublicOnly: true},
			want: []string{"plain"},
		},
		{
			name: "include forks",
			opts: DiscoverOptions{IncludeForks: true},
			want: []string{"plain", "fork-1", "fork-2", "secret"},
		},
		{
			name: "include everything",
			opts: DiscoverOptions{IncludeForks: true, IncludeArchived: true},
			want: []string{"plain", "fork-1", "fork-2", "secret", "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterRepos(repos, tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("filterRepos() kept %d repos, want %d", len(got), len(tt.want))
			}

			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("filterRepos()[%d] = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestFilterRepos_Idempotent(t *testing.T) {
	repos := []RepoRef{
		{Owner: "o", Name: "plain"},
		{Owner: "o", Name: "fork", Fork: true},
	}

	opts := DiscoverOptions{}

	once := filterRepos(repos, opts)

	twice := filterRepos(once, opts)
	if len(once) != len(twice) {
		t.Errorf("second filter pass changed the set: %d vs %d", len(once), len(twice))
	}
}

func TestRepoRef_FullName(t *testing.T) {
	ref := RepoRef{Owner: "octocat", Name: "hello-world"}
	if got := ref.FullName(); got != "octocat/hello-world" {
		t.Errorf("FullName() = %q, want octocat/hello-world", got)
	}
}

func TestDiscoverOptions_ScopeCount(t *testing.T) {
	tests := []struct {
		name string
		opts DiscoverOptions
		want int
	}{
		{"none", DiscoverOptions{}, 0},
		{"org only", DiscoverOptions{Org: "myorg"}, 1},
		{"all three", DiscoverOptions{Org: "myorg", User: "octocat", Self: true}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.scopeCount(); got != tt.want {
				t.Errorf("scopeCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiscover_NoScope(t *testing.T) {
	d := NewDiscoverer(github.NewClient(nil), discardLogger())

	_, err := d.Discover(context.Background(), DiscoverOptions{})
	if err == nil {
		t.Fatal("Discover() with no scope should fail")
	}
}

// fakeLister serves canned per-scope listings; absent scopes answer 404.
type fakeLister struct {
	orgs  map[string][]*github.Repository
	users map[string][]*github.Repository
	self  []*github.Repository
}

func notFoundResponse() error {
	return &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func pageOf(repos []*github.Repository, page int) []*github.Repository {
	start := (page - 1) * discoverPageSize
	if start >= len(repos) {
		return nil
	}

	end := start + discoverPageSize
	if end > len(repos) {
		end = len(repos)
	}

	return repos[start:end]
}

func (f *fakeLister) ListByOrg(_ context.Context, org string, page int) ([]*github.Repository, error) {
	repos, ok := f.orgs[org]
	if !ok {
		return nil, notFoundResponse()
	}

	return pageOf(repos, page), nil
}

func (f *fakeLister) ListByUser(_ context.Context, user string, page int) ([]*github.Repository, error) {
	repos, ok := f.users[user]
	if !ok {
		return nil, notFoundResponse()
	}

	return pageOf(repos, page), nil
}

func (f *fakeLister) ListSelf(_ context.Context, page int) ([]*github.Repository, error) {
	return pageOf(f.self, page), nil
}

func fakeDiscoverer(lister repoLister) *Discoverer {
	return &Discoverer{lister: lister, logger: discardLogger()}
}

func TestDiscover_MergesAndDedupsAcrossScopes(t *testing.T) {
	// The user scope and the authenticated-user scope overlap on beta; the
	// merged set must carry it once, in first-seen order.
	d := fakeDiscoverer(&fakeLister{
		users: map[string][]*github.Repository{
			"octocat": {fakeRepo("octocat", "alpha"), fakeRepo("octocat", "beta")},
		},
		self: []*github.Repository{fakeRepo("octocat", "beta"), fakeRepo("octocat", "gamma")},
	})

	refs, err := d.Discover(context.Background(), DiscoverOptions{User: "octocat", Self: true})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []string{"octocat/alpha", "octocat/beta", "octocat/gamma"}
	if len(refs) != len(want) {
		t.Fatalf("Discover() returned %d refs, want %d: %v", len(refs), len(want), refs)
	}

	for i, ref := range refs {
		if ref.FullName() != want[i] {
			t.Errorf("refs[%d] = %s, want %s", i, ref.FullName(), want[i])
		}
	}
}

func TestDiscover_MergeIsIdempotent(t *testing.T) {
	// Two scopes serving identical listings collapse to the single-scope set.
	repos := []*github.Repository{fakeRepo("octocat", "alpha"), fakeRepo("octocat", "beta")}

	d := fakeDiscoverer(&fakeLister{
		users: map[string][]*github.Repository{"octocat": repos},
		self:  repos,
	})

	refs, err := d.Discover(context.Background(), DiscoverOptions{User: "octocat", Self: true})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(refs) != 2 {
		t.Errorf("Discover() returned %d refs, want 2: %v", len(refs), refs)
	}
}

func TestDiscover_SoleScopeNotFoundIsFatal(t *testing.T) {
	d := fakeDiscoverer(&fakeLister{})

	_, err := d.Discover(context.Background(), DiscoverOptions{Org: "ghost"})

	var scopeErr *ScopeNotFoundError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("Discover() error = %v, want *ScopeNotFoundError", err)
	}

	if scopeErr.Scope != "ghost" {
		t.Errorf("Scope = %q, want ghost", scopeErr.Scope)
	}
}

func TestDiscover_SecondaryScopeNotFoundDegrades(t *testing.T) {
	// A missing scope alongside a present one contributes nothing instead of
	// failing the run.
	d := fakeDiscoverer(&fakeLister{
		users: map[string][]*github.Repository{
			"octocat": {fakeRepo("octocat", "alpha")},
		},
	})

	refs, err := d.Discover(context.Background(), DiscoverOptions{Org: "ghost", User: "octocat"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(refs) != 1 || refs[0].FullName() != "octocat/alpha" {
		t.Errorf("Discover() = %v, want exactly octocat/alpha", refs)
	}
}
