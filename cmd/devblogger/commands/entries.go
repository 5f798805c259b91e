// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/blog"
)

func newEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage generated blog entries",
	}
	cmd.AddCommand(newEntriesListCmd())
	cmd.AddCommand(newEntriesShowCmd())
	cmd.AddCommand(newEntriesSearchCmd())
	cmd.AddCommand(newEntriesDeleteCmd())
	cmd.AddCommand(newEntriesExportCmd())
	cmd.AddCommand(newEntriesValidateCmd())
	return cmd
}

func newEntriesListCmd() *cobra.Command {
	var (
		repoName string
		provider string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			entries := manager.Entries(blog.EntryFilter{
				Repository: repoName,
				Provider:   provider,
				Limit:      limit,
			})

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s %-8s %s\n",
					e.GeneratedAt.Format("2006-01-02 15:04"), e.Repository, e.Provider, e.ID())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "filter by repository")
	cmd.Flags().StringVar(&provider, "provider", "", "filter by ai provider")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to show (all when 0)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newEntriesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Print an entry's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			entry := manager.Store().Get(args[0])
			if entry == nil {
				return clierr.Newf(clierr.CodeUsage, "blog entry %q not found", args[0])
			}

			raw, err := os.ReadFile(entry.Path)
			if err != nil {
				return fmt.Errorf("reading entry file: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newEntriesSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search entries by title, repository, or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			for _, e := range manager.Store().Search(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.ID(), e.Title)
			}
			return nil
		},
	}
}

func newEntriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an entry and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			if err := manager.Store().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newEntriesExportCmd() *cobra.Command {
	var (
		dir    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all entries as one JSON or markdown file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating export directory: %w", err)
			}

			path, err := manager.Store().Export(dir, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write the export into")
	cmd.Flags().StringVar(&format, "format", "json", "export format: json or markdown")
	return cmd
}

func newEntriesValidateCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Cross-check the entry index against the files on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}

			report, err := manager.Store().Validate()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range report.MissingFiles {
				fmt.Fprintf(out, "missing file: %s\n", id)
			}
			for _, f := range report.OrphanedFiles {
				fmt.Fprintf(out, "orphaned file: %s\n", f)
			}
			if report.TotalIssues() == 0 {
				fmt.Fprintln(out, "Index is consistent")
				return nil
			}

			if !repair {
				return clierr.Newf(clierr.CodeGeneric, "%d issues found (use --repair to fix)", report.TotalIssues())
			}

			result, err := manager.Store().Repair()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Repaired: %d files re-indexed, %d stale records dropped\n",
				result.ReindexedFiles, result.DroppedEntries)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "repair error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "re-index orphaned files and drop stale records")
	return cmd
}
