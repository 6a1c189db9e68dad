package core

import (
	"context"
	"os"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/google/go-github/v82/github"
	"github.com/inovacc/gitvault/internal/application"
	"golang.org/x/oauth2"
)

// TokenSource indicates where the token was found
type TokenSource string

const (
	TokenSourceFlag      TokenSource = "flag"
	TokenSourceEnvGitHub TokenSource = "GITHUB_TOKEN"
	TokenSourceEnvGH     TokenSource = "GH_TOKEN"
	TokenSourceGHCLI     TokenSource = "gh-cli"
	TokenSourceNone      TokenSource = "none"
)

// ResolveToken attempts to find a GitHub token from multiple sources.
// Priority order:
//  1. flagToken (explicit --token flag)
//  2. GITHUB_TOKEN environment variable
//  3. GH_TOKEN environment variable
//  4. gh CLI auth (config file)
func ResolveToken(flagToken string) (token string, source TokenSource, err error) {
	// 1. Flag has highest priority
	if flagToken != "" {
		return flagToken, TokenSourceFlag, nil
	}

	// 2. Check GITHUB_TOKEN env var
	if token = os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, TokenSourceEnvGitHub, nil
	}

	// 3. Check GH_TOKEN env var
	if token = os.Getenv("GH_TOKEN"); token != "" {
		return token, TokenSourceEnvGH, nil
	}

	// 4. Try gh CLI auth (keyring + config file)
	if token, _ = auth.TokenForHost("github.com"); token != "" {
		return token, TokenSourceGHCLI, nil
	}

	return "", TokenSourceNone, &AuthError{Reason: `no GitHub token found

Provide a token via one of:
  * GITHUB_TOKEN env var
  * --token flag
  * gh auth login (auto-detected from gh CLI)

Create a token at: https://github.com/settings/tokens`}
}

// NewGitHubClient creates an authenticated GitHub API client.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	client := github.NewClient(tc)
	client.UserAgent = application.UserAgent()

	return client
}

// VerifyCredential performs the one identity round-trip done before any
// other network operation. Returns the authenticated login.
func VerifyCredential(ctx context.Context, client *github.Client) (string, error) {
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		if IsNetworkError(err) {
			return "", &NetworkError{Operation: "credential check", Err: err}
		}

		return "", &AuthError{Reason: "token rejected by GitHub", Err: err}
	}

	return user.GetLogin(), nil
}
