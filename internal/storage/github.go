package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// releaseTag is the tag of the release that collects uploaded archives.
const releaseTag = "gitvault-backups"

// GitHubSink uploads archives as release assets of a dedicated repository.
// Assets with the same name (the latest alias) are replaced.
type GitHubSink struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubSink creates a sink uploading to cfg.Owner/cfg.Repo using cfg.Token.
func NewGitHubSink(cfg Config) (*GitHubSink, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github sink requires owner and repo")
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("github sink requires a token")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHubSink{
		client: github.NewClient(tc),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
	}, nil
}

func (s *GitHubSink) Name() string { return "github" }

func (s *GitHubSink) Upload(ctx context.Context, localPath, destName string) error {
	release, err := s.ensureRelease(ctx)
	if err != nil {
		return err
	}

	if err := s.removeExistingAsset(ctx, release.GetID(), destName); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	opts := &github.UploadOptions{Name: destName}

	if _, _, err := s.client.Repositories.UploadReleaseAsset(ctx, s.owner, s.repo, release.GetID(), opts, f); err != nil {
		return fmt.Errorf("failed to upload release asset %s: %w", destName, err)
	}

	return nil
}

func (s *GitHubSink) ensureRelease(ctx context.Context) (*github.RepositoryRelease, error) {
	release, resp, err := s.client.Repositories.GetReleaseByTag(ctx, s.owner, s.repo, releaseTag)
	if err == nil {
		return release, nil
	}

	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("failed to look up backup release: %w", err)
	}

	release, _, err = s.client.Repositories.CreateRelease(ctx, s.owner, s.repo, &github.RepositoryRelease{
		TagName: github.Ptr(releaseTag),
		Name:    github.Ptr("Repository backups"),
		Draft:   github.Ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backup release: %w", err)
	}

	return release, nil
}

func (s *GitHubSink) removeExistingAsset(ctx context.Context, releaseID int64, name string) error {
	opts := &github.ListOptions{PerPage: 100}

	for {
		assets, resp, err := s.client.Repositories.ListReleaseAssets(ctx, s.owner, s.repo, releaseID, opts)
		if err != nil {
			return fmt.Errorf("failed to list release assets: %w", err)
		}

		for _, asset := range assets {
			if asset.GetName() == name {
				if _, err := s.client.Repositories.DeleteReleaseAsset(ctx, s.owner, s.repo, asset.GetID()); err != nil {
					return fmt.Errorf("failed to replace release asset %s: %w", name, err)
				}

				return nil
			}
		}

		if resp.NextPage == 0 {
			return nil
		}

		opts.Page = resp.NextPage
	}
}
