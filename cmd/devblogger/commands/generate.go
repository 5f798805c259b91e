// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/blog"
	"github.com/bartekus/devblogger/internal/github"
)

func newGenerateCmd() *cobra.Command {
	var (
		repoName    string
		branch      string
		since       string
		until       string
		provider    string
		prompt      string
		maxTokens   int
		temperature float64
		output      string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "generate [sha...]",
		Short: "Generate a blog entry from commits",
		Long: `Generate a markdown blog entry from commits of one repository.

Commits are selected either by listing SHAs as arguments, or by a
--since/--until window (which picks up every commit not yet turned
into an entry). The result is written to the entries directory,
indexed, and the commits are marked processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := github.SplitFullName(repoName)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --repo", err)
			}
			if len(args) == 0 && since == "" {
				return clierr.New(clierr.CodeUsage, "select commits: pass SHAs or --since")
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

			commits, err := selectCommits(cmd.Context(), client, a, owner, repo, args, branch, since, until)
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				return clierr.New(clierr.CodeUsage, "no commits matched the selection")
			}

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			opts := blog.GenerateOptions{
				Prompt:    prompt,
				Provider:  provider,
				MaxTokens: maxTokens,
			}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = &temperature
			}

			out := cmd.OutOrStdout()
			if dryRun {
				return printDryRun(out, manager, commits, repoName, provider)
			}

			result, err := manager.GenerateAndSave(cmd.Context(), commits, repoName, opts, output)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "generating blog entry", err)
			}

			fmt.Fprintf(out, "Generated %s\n", result.Path)
			fmt.Fprintf(out, "Entry ID: %s\n", result.EntryID)
			fmt.Fprintf(out, "Provider: %s (%s), %d tokens\n",
				result.Result.Provider, result.Result.Model, result.Result.TokensUsed)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "repository as owner/repo (required)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch to select commits from")
	cmd.Flags().StringVar(&since, "since", "", "select unprocessed commits after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "upper bound for --since selection")
	cmd.Flags().StringVar(&provider, "provider", "", "ai provider (chatgpt, gemini, ollama); active provider when empty")
	cmd.Flags().StringVar(&prompt, "prompt", "", "custom generation prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token limit for the response")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().StringVar(&output, "output", "", "entry filename (derived from repo and time when empty)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show selection stats and warnings without generating")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

// selectCommits resolves the commit selection: explicit SHAs win, otherwise
// the unprocessed commits inside the date window.
func selectCommits(ctx context.Context, client *github.Client, a *app, owner, repo string, shas []string, branch, since, until string) ([]github.Commit, error) {
	if len(shas) > 0 {
		commits := make([]github.Commit, 0, len(shas))
		for _, sha := range shas {
			c, err := client.Commit(ctx, owner, repo, sha)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeRemote, "fetching commit "+sha, err)
			}
			commits = append(commits, c)
		}
		return commits, nil
	}

	opts := github.CommitListOptions{Branch: branch, PerPage: 100}
	var err error
	if opts.Since, err = parseDateFlag(since); err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid --since", err)
	}
	if opts.Until, err = parseDateFlag(until); err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid --until", err)
	}

	commits, err := client.Commits(ctx, owner, repo, opts)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeRemote, "listing commits", err)
	}
	return dropProcessed(a, owner+"/"+repo, commits)
}

func printDryRun(out io.Writer, manager *blog.Manager, commits []github.Commit, repoName, provider string) error {
	stats := blog.Stats(commits)
	fmt.Fprintf(out, "Would generate from %d commits by %s\n", stats.TotalCommits, strings.Join(stats.Authors, ", "))
	fmt.Fprintf(out, "Files touched: %d (+%d -%d)\n", stats.UniqueFiles, stats.Additions, stats.Deletions)
	if !stats.Earliest.IsZero() {
		fmt.Fprintf(out, "Date range: %s to %s (%d days)\n",
			stats.Earliest.Format("2006-01-02"), stats.Latest.Format("2006-01-02"), stats.SpanDays)
	}
	fmt.Fprintf(out, "Estimated time: %s\n", blog.EstimateDuration(len(commits), provider))

	for _, issue := range manager.Generator().Validate(commits, repoName) {
		fmt.Fprintf(out, "warning: %s\n", issue)
	}
	return nil
}
