// SPDX-License-Identifier: AGPL-3.0-or-later
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v38/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Client is a thin wrapper over the GitHub REST API returning devblogger's
// own models.
type Client struct {
	gh  *gh.Client
	log zerolog.Logger
}

// RepoListOptions filters repository listings.
type RepoListOptions struct {
	IncludePrivate bool
	Page           int
	PerPage        int
}

// CommitListOptions filters commit listings.
type CommitListOptions struct {
	Branch  string
	Author  string
	Since   time.Time
	Until   time.Time
	Page    int
	PerPage int
}

// NewClient builds a client. An empty token yields an unauthenticated client,
// which is enough for rate-limit checks and public data. apiBaseURL overrides
// the endpoint for tests and GitHub Enterprise; empty means api.github.com.
func NewClient(ctx context.Context, token, apiBaseURL string, log zerolog.Logger) (*Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := gh.NewClient(httpClient)
	if apiBaseURL != "" && apiBaseURL != "https://api.github.com" {
		base, err := url.Parse(apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing API base URL: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		client.BaseURL = base
	}

	return &Client{gh: client, log: log}, nil
}

// AuthenticatedUser returns the account the token belongs to.
func (c *Client) AuthenticatedUser(ctx context.Context) (User, error) {
	u, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return User{}, fmt.Errorf("fetching authenticated user: %w", err)
	}
	return userFromAPI(u), nil
}

// Repositories lists repositories for user (the authenticated user when
// empty), newest activity first.
func (c *Client) Repositories(ctx context.Context, user string, opts RepoListOptions) ([]Repository, error) {
	listOpts := &gh.RepositoryListOptions{
		Sort: "updated",
		ListOptions: gh.ListOptions{
			Page:    opts.Page,
			PerPage: clampPerPage(opts.PerPage),
		},
	}
	if opts.IncludePrivate {
		listOpts.Visibility = "all"
	} else {
		listOpts.Visibility = "public"
	}

	repos, _, err := c.gh.Repositories.List(ctx, user, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, repositoryFromAPI(r))
	}
	return out, nil
}

// Repository returns details about a single repository.
func (c *Client) Repository(ctx context.Context, owner, repo string) (Repository, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return Repository{}, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}
	return repositoryFromAPI(r), nil
}

// Commits lists commits for a repository. File-level detail is not included;
// use Commit for that.
func (c *Client) Commits(ctx context.Context, owner, repo string, opts CommitListOptions) ([]Commit, error) {
	listOpts := &gh.CommitsListOptions{
		SHA:    opts.Branch,
		Author: opts.Author,
		Since:  opts.Since,
		Until:  opts.Until,
		ListOptions: gh.ListOptions{
			Page:    opts.Page,
			PerPage: clampPerPage(opts.PerPage),
		},
	}

	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s/%s: %w", owner, repo, err)
	}

	out := make([]Commit, 0, len(commits))
	for _, rc := range commits {
		out = append(out, commitFromAPI(rc))
	}
	return out, nil
}

// Commit returns a single commit with its file changes.
func (c *Client) Commit(ctx context.Context, owner, repo, sha string) (Commit, error) {
	rc, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return Commit{}, fmt.Errorf("fetching commit %s: %w", sha, err)
	}
	return commitFromAPI(rc), nil
}

// Diff returns the concatenated patches of a commit's file changes.
func (c *Client) Diff(ctx context.Context, owner, repo, sha string) (string, error) {
	commit, err := c.Commit(ctx, owner, repo, sha)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, f := range commit.Files {
		if f.Patch != "" {
			b.WriteString(f.Patch)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// Branches lists the branches of a repository.
func (c *Client) Branches(ctx context.Context, owner, repo string) ([]Branch, error) {
	branches, _, err := c.gh.Repositories.ListBranches(ctx, owner, repo, nil)
	if err != nil {
		return nil, fmt.Errorf("listing branches for %s/%s: %w", owner, repo, err)
	}

	out := make([]Branch, 0, len(branches))
	for _, b := range branches {
		out = append(out, branchFromAPI(b))
	}
	return out, nil
}

// Languages returns byte counts per language for a repository.
func (c *Client) Languages(ctx context.Context, owner, repo string) (map[string]int, error) {
	langs, _, err := c.gh.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("listing languages for %s/%s: %w", owner, repo, err)
	}
	return langs, nil
}

// SearchRepositories searches public repositories.
func (c *Client) SearchRepositories(ctx context.Context, query, sort, order string, page, perPage int) ([]Repository, error) {
	opts := &gh.SearchOptions{
		Sort:  sort,
		Order: order,
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: clampPerPage(perPage),
		},
	}

	result, _, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching repositories: %w", err)
	}

	out := make([]Repository, 0, len(result.Repositories))
	for i := range result.Repositories {
		out = append(out, repositoryFromAPI(result.Repositories[i]))
	}
	return out, nil
}

// RateLimit returns the core API quota state.
func (c *Client) RateLimit(ctx context.Context) (RateLimit, error) {
	limits, _, err := c.gh.RateLimits(ctx)
	if err != nil {
		return RateLimit{}, fmt.Errorf("fetching rate limit: %w", err)
	}

	core := limits.GetCore()
	if core == nil {
		return RateLimit{}, nil
	}
	return RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

// TestConnection verifies the API is reachable. It works unauthenticated.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.RateLimit(ctx); err != nil {
		return fmt.Errorf("github connection test: %w", err)
	}
	return nil
}

func clampPerPage(n int) int {
	switch {
	case n <= 0:
		return 30
	case n > 100:
		return 100
	}
	return n
}
