// SPDX-License-Identifier: AGPL-3.0-or-later

/*
DevBlogger turns selected GitHub commits into AI-generated development blog
entries. It talks to the GitHub API for repositories and commits, generates
markdown entries through OpenAI, Gemini, or a local Ollama server, and keeps
the results indexed on disk with a SQLite ledger of processed commits.
*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd constructs the devblogger root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("DEVBLOGGER_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "devblogger",
		Short:         "DevBlogger - turn GitHub commits into dev blog entries",
		Long:          "DevBlogger generates development blog entries from GitHub commit history using AI providers (OpenAI, Gemini, Ollama).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().String("config", "", "path to the settings file")
	cmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of DevBlogger",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "DevBlogger version %s\n", version)
		},
	})

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newCommitsCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newEntriesCmd())
	cmd.AddCommand(newProvidersCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCleanupCmd())

	return cmd
}
