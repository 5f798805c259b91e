// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/github"
)

func newLoginCmd() *cobra.Command {
	var patToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GitHub",
		Long: `Authenticate with GitHub and save the token locally.

With --token a personal access token is stored directly. Otherwise the
OAuth flow runs: a browser URL is printed and a loopback server waits
for the callback. OAuth requires github.client_id and github.client_secret
in the settings (or GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var token *oauth2.Token
			if patToken != "" {
				token = &oauth2.Token{AccessToken: patToken}
			} else {
				gh := a.settings.GitHub()
				auth := github.NewAuthenticator(gh.ClientID, gh.ClientSecret, gh.Scope, a.log)
				if !auth.Configured() {
					return clierr.New(clierr.CodeAuth,
						"oauth is not configured: set github.client_id and github.client_secret, or use --token")
				}
				token, err = auth.Login(cmd.Context())
				if err != nil {
					return clierr.Wrap(clierr.CodeAuth, "github login", err)
				}
			}

			// Verify before persisting.
			client, err := github.NewClient(cmd.Context(), token.AccessToken, a.settings.GitHub().APIBaseURL, a.log)
			if err != nil {
				return err
			}
			user, err := client.AuthenticatedUser(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeAuth, "verifying token", err)
			}

			if err := github.SaveToken(a.settings.TokenPath(), token); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&patToken, "token", "", "personal access token to store instead of running OAuth")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved GitHub token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := github.RemoveToken(a.settings.TokenPath()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated GitHub user",
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
			user, err := client.AuthenticatedUser(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "fetching user", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.DisplayName(), user.Login)
			return nil
		},
	}
}
