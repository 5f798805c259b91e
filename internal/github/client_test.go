// SPDX-License-Identifier: AGPL-3.0-or-later
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commitJSON = `{
	"sha": "abc1234567890",
	"html_url": "https://github.com/owner/repo/commit/abc1234567890",
	"commit": {
		"message": "fix: handle empty input\n\nLonger body.",
		"author": {"name": "Dev Eloper", "email": "dev@example.com", "date": "2025-06-01T12:00:00Z"},
		"committer": {"name": "Dev Eloper", "email": "dev@example.com", "date": "2025-06-01T12:00:00Z"}
	},
	"author": {"login": "dev"},
	"parents": [{"sha": "parent1"}],
	"stats": {"additions": 10, "deletions": 2, "total": 12},
	"files": [
		{"filename": "main.go", "status": "modified", "additions": 10, "deletions": 2, "changes": 12, "patch": "@@ -1 +1 @@"}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-token", srv.URL, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestAuthenticatedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login": "octocat", "id": 1, "name": "The Octocat"}`)
	})
	c := newTestClient(t, mux)

	user, err := c.AuthenticatedUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, "The Octocat", user.Name)
	assert.Equal(t, "The Octocat", user.DisplayName())
}

func TestCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("sha"))
		fmt.Fprintf(w, "[%s]", commitJSON)
	})
	c := newTestClient(t, mux)

	commits, err := c.Commits(context.Background(), "owner", "repo", CommitListOptions{Branch: "main"})
	require.NoError(t, err)
	require.Len(t, commits, 1)

	commit := commits[0]
	assert.Equal(t, "abc1234567890", commit.SHA)
	assert.Equal(t, "abc12345", commit.ShortSHA())
	assert.Equal(t, "fix: handle empty input", commit.Subject())
	assert.Equal(t, "Dev Eloper", commit.Author.Name)
	assert.Equal(t, "dev", commit.Author.Login)
	assert.Equal(t, []string{"parent1"}, commit.Parents)
	assert.Equal(t, 10, commit.Stats.Additions)
	require.Len(t, commit.Files, 1)
	assert.Equal(t, "main.go", commit.Files[0].Filename)
}

func TestCommitAndDiff(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits/abc1234567890", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, commitJSON)
	})
	c := newTestClient(t, mux)

	commit, err := c.Commit(context.Background(), "owner", "repo", "abc1234567890")
	require.NoError(t, err)
	assert.Equal(t, "modified", commit.Files[0].Status)

	diff, err := c.Diff(context.Background(), "owner", "repo", "abc1234567890")
	require.NoError(t, err)
	assert.Equal(t, "@@ -1 +1 @@\n", diff)
}

func TestRepositories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("visibility"))
		fmt.Fprint(w, `[{"id": 7, "name": "repo", "full_name": "owner/repo", "default_branch": "main", "private": true}]`)
	})
	c := newTestClient(t, mux)

	repos, err := c.Repositories(context.Background(), "", RepoListOptions{IncludePrivate: true})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "owner/repo", repos[0].FullName)
	assert.True(t, repos[0].Private)
}

func TestRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": 7,
			"name": "repo",
			"full_name": "owner/repo",
			"description": "A fine repository",
			"default_branch": "main",
			"language": "Go",
			"html_url": "https://github.com/owner/repo",
			"stargazers_count": 12,
			"forks_count": 3
		}`)
	})
	c := newTestClient(t, mux)

	repo, err := c.Repository(context.Background(), "owner", "repo")
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", repo.FullName)
	assert.Equal(t, "A fine repository", repo.Description)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, "Go", repo.Language)
	assert.Equal(t, 12, repo.Stars)
	assert.Equal(t, 3, repo.Forks)
}

func TestRepositoryNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.Repository(context.Background(), "owner", "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching repository owner/gone")
}

func TestLanguages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/languages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Go": 46000, "Shell": 1200}`)
	})
	c := newTestClient(t, mux)

	langs, err := c.Languages(context.Background(), "owner", "repo")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Go": 46000, "Shell": 1200}, langs)
}

func TestRateLimitAndConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resources": {"core": {"limit": 5000, "remaining": 4999, "reset": 1750000000}}}`)
	})
	c := newTestClient(t, mux)

	rl, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, rl.Limit)
	assert.Equal(t, 4999, rl.Remaining)

	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestAPIErrorsSurface(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.Commits(context.Background(), "owner", "repo", CommitListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing commits")
}

func TestSplitFullName(t *testing.T) {
	owner, repo, err := SplitFullName("owner/repo")
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", repo)

	for _, bad := range []string{"", "owner", "owner/", "/repo"} {
		_, _, err := SplitFullName(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
