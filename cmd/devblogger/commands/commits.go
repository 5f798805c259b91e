// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/github"
	"github.com/bartekus/devblogger/internal/ledger"
)

func newCommitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commits",
		Short: "Browse and inspect commits",
	}
	cmd.AddCommand(newCommitsListCmd())
	cmd.AddCommand(newCommitsShowCmd())
	return cmd
}

func newCommitsListCmd() *cobra.Command {
	var (
		repoName      string
		branch        string
		author        string
		since, until  string
		page, perPage int
		unprocessed   bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commits of a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := github.SplitFullName(repoName)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --repo", err)
			}

			opts := github.CommitListOptions{
				Branch:  branch,
				Author:  author,
				Page:    page,
				PerPage: perPage,
			}
			if opts.Since, err = parseDateFlag(since); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --since", err)
			}
			if opts.Until, err = parseDateFlag(until); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --until", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.githubClient(cmd.Context())
			if err != nil {
				return err
			}

			commits, err := client.Commits(cmd.Context(), owner, repo, opts)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "listing commits", err)
			}

			if unprocessed {
				commits, err = dropProcessed(a, repoName, commits)
				if err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(commits)
			}

			for _, c := range commits {
				date := "unknown"
				if !c.Date.IsZero() {
					date = c.Date.Format("2006-01-02")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-20s %s\n", c.ShortSHA(), date, c.Author.DisplayName(), c.Subject())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "repository as owner/repo (required)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch or ref (default branch when empty)")
	cmd.Flags().StringVar(&author, "author", "", "filter by author login")
	cmd.Flags().StringVar(&since, "since", "", "only commits after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "only commits before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&perPage, "limit", 30, "results per page")
	cmd.Flags().BoolVar(&unprocessed, "unprocessed", false, "hide commits already turned into a blog entry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func newCommitsShowCmd() *cobra.Command {
	var (
		repoName string
		withDiff bool
	)

	cmd := &cobra.Command{
		Use:   "show <sha>",
		Short: "Show one commit with its file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := github.SplitFullName(repoName)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --repo", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.githubClient(cmd.Context())
			if err != nil {
				return err
			}

			commit, err := client.Commit(cmd.Context(), owner, repo, args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "fetching commit", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "commit %s\n", commit.SHA)
			fmt.Fprintf(out, "Author: %s\n", commit.Author.DisplayName())
			if !commit.Date.IsZero() {
				fmt.Fprintf(out, "Date:   %s\n", commit.Date.Format(time.RFC1123))
			}
			fmt.Fprintf(out, "\n%s\n\n", commit.Message)
			fmt.Fprintf(out, "%d files changed, +%d -%d\n", len(commit.Files), commit.Stats.Additions, commit.Stats.Deletions)
			for _, f := range commit.Files {
				fmt.Fprintf(out, "  %-10s %s (+%d -%d)\n", f.Status, f.Filename, f.Additions, f.Deletions)
			}

			if withDiff {
				diff, err := client.Diff(cmd.Context(), owner, repo, args[0])
				if err != nil {
					return clierr.Wrap(clierr.CodeRemote, "fetching diff", err)
				}
				fmt.Fprintf(out, "\n%s", diff)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "repository as owner/repo (required)")
	cmd.Flags().BoolVar(&withDiff, "diff", false, "include the unified diff")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

// dropProcessed filters out commits the ledger already knows.
func dropProcessed(a *app, repoName string, commits []github.Commit) ([]github.Commit, error) {
	out := commits[:0]
	for _, c := range commits {
		done, err := a.ledger.IsProcessed(repoName, c.SHA, ledger.ProcessTypeAny)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, c)
		}
	}
	return out, nil
}

// parseDateFlag accepts YYYY-MM-DD or RFC 3339; empty means unset.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
