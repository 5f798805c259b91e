// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/github"
)

func newReposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Browse GitHub repositories",
	}
	cmd.AddCommand(newReposListCmd())
	cmd.AddCommand(newReposSearchCmd())
	cmd.AddCommand(newReposShowCmd())
	cmd.AddCommand(newReposBranchesCmd())
	return cmd
}

func newReposShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <owner/repo>",
		Short: "Show details and language breakdown of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := github.SplitFullName(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid repository", err)
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

			details, err := client.Repository(cmd.Context(), owner, repo)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "fetching repository", err)
			}
			languages, err := client.Languages(cmd.Context(), owner, repo)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "fetching languages", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					github.Repository
					Languages map[string]int `json:"languages,omitempty"`
				}{details, languages})
			}

			fmt.Fprintf(out, "%s\n", details.FullName)
			if details.Description != "" {
				fmt.Fprintf(out, "  %s\n", details.Description)
			}
			fmt.Fprintf(out, "  default branch: %s\n", details.DefaultBranch)
			fmt.Fprintf(out, "  stars: %d  forks: %d\n", details.Stars, details.Forks)
			if details.HTMLURL != "" {
				fmt.Fprintf(out, "  %s\n", details.HTMLURL)
			}

			names := make([]string, 0, len(languages))
			for name := range languages {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if languages[names[i]] != languages[names[j]] {
					return languages[names[i]] > languages[names[j]]
				}
				return names[i] < names[j]
			})
			for _, name := range names {
				fmt.Fprintf(out, "  %-12s %d bytes\n", name, languages[name])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newReposListCmd() *cobra.Command {
	var (
		includePrivate bool
		page, perPage  int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your repositories, newest activity first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.githubClient(cmd.Context())
			if err != nil {
				return err
			}

			repos, err := client.Repositories(cmd.Context(), "", github.RepoListOptions{
				IncludePrivate: includePrivate,
				Page:           page,
				PerPage:        perPage,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "listing repositories", err)
			}

			return printRepos(cmd, repos, asJSON)
		},
	}

	cmd.Flags().BoolVar(&includePrivate, "private", false, "include private repositories")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&perPage, "limit", 30, "results per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newReposSearchCmd() *cobra.Command {
	var (
		page, perPage int
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search repositories on GitHub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.githubClient(cmd.Context())
			if err != nil {
				return err
			}

			repos, err := client.SearchRepositories(cmd.Context(), args[0], "updated", "desc", page, perPage)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "searching repositories", err)
			}

			return printRepos(cmd, repos, asJSON)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&perPage, "limit", 30, "results per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newReposBranchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches <owner/repo>",
		Short: "List branches of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := github.SplitFullName(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid repository", err)
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

			branches, err := client.Branches(cmd.Context(), owner, repo)
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "listing branches", err)
			}

			for _, b := range branches {
				marker := " "
				if b.Protected {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, b.Name)
			}
			return nil
		},
	}
}

func printRepos(cmd *cobra.Command, repos []github.Repository, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(repos)
	}

	for _, r := range repos {
		visibility := ""
		if r.Private {
			visibility = " (private)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s", r.FullName, visibility)
		if r.Language != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s]", r.Language)
		}
		if r.Description != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s", r.Description)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
