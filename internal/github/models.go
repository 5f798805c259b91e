// SPDX-License-Identifier: AGPL-3.0-or-later

// Package github wraps the GitHub REST API for devblogger: authentication,
// repository and commit listing, and the commit detail needed for blog
// generation.
package github

import (
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v38/github"
)

// User is a GitHub account, or the author/committer identity on a commit.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Login != "" {
		return u.Login
	}
	return "Unknown"
}

// Repository is a GitHub repository summary.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language,omitempty"`
	HTMLURL       string    `json:"html_url"`
	Private       bool      `json:"private"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FileChange describes one file touched by a commit.
type FileChange struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Changes          int    `json:"changes"`
	Patch            string `json:"patch,omitempty"`
	PreviousFilename string `json:"previous_filename,omitempty"`
}

// CommitStats aggregates line counts for a commit.
type CommitStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// Commit is a single recorded change-set with the metadata blog generation
// needs.
type Commit struct {
	SHA       string       `json:"sha"`
	Message   string       `json:"message"`
	Author    User         `json:"author"`
	Committer User         `json:"committer"`
	Date      time.Time    `json:"date"`
	HTMLURL   string       `json:"html_url,omitempty"`
	Parents   []string     `json:"parents,omitempty"`
	Stats     CommitStats  `json:"stats"`
	Files     []FileChange `json:"files,omitempty"`
}

// ShortSHA returns the abbreviated commit hash.
func (c Commit) ShortSHA() string {
	if len(c.SHA) < 8 {
		return c.SHA
	}
	return c.SHA[:8]
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// Branch is a repository branch head.
type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commit_sha"`
	Protected bool   `json:"protected"`
}

// RateLimit is the API quota state.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// SplitFullName splits "owner/repo" into its parts.
func SplitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: want owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

func userFromAPI(u *gh.User) User {
	if u == nil {
		return User{}
	}
	return User{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}
}

func repositoryFromAPI(r *gh.Repository) Repository {
	return Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		HTMLURL:       r.GetHTMLURL(),
		Private:       r.GetPrivate(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}

func commitFromAPI(rc *gh.RepositoryCommit) Commit {
	commit := rc.GetCommit()

	c := Commit{
		SHA:     rc.GetSHA(),
		Message: commit.GetMessage(),
		HTMLURL: rc.GetHTMLURL(),
		Date:    commit.GetAuthor().GetDate(),
		Author: User{
			Name:  commit.GetAuthor().GetName(),
			Email: commit.GetAuthor().GetEmail(),
			Login: rc.GetAuthor().GetLogin(),
		},
		Committer: User{
			Name:  commit.GetCommitter().GetName(),
			Email: commit.GetCommitter().GetEmail(),
			Login: rc.GetCommitter().GetLogin(),
		},
	}

	for _, p := range rc.Parents {
		c.Parents = append(c.Parents, p.GetSHA())
	}
	if stats := rc.GetStats(); stats != nil {
		c.Stats = CommitStats{
			Additions: stats.GetAdditions(),
			Deletions: stats.GetDeletions(),
			Total:     stats.GetTotal(),
		}
	}
	for _, f := range rc.Files {
		c.Files = append(c.Files, FileChange{
			Filename:         f.GetFilename(),
			Status:           f.GetStatus(),
			Additions:        f.GetAdditions(),
			Deletions:        f.GetDeletions(),
			Changes:          f.GetChanges(),
			Patch:            f.GetPatch(),
			PreviousFilename: f.GetPreviousFilename(),
		})
	}
	return c
}

func branchFromAPI(b *gh.Branch) Branch {
	return Branch{
		Name:      b.GetName(),
		CommitSHA: b.GetCommit().GetSHA(),
		Protected: b.GetProtected(),
	}
}
