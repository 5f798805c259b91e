// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/ai"
	"github.com/bartekus/devblogger/internal/blog"
	"github.com/bartekus/devblogger/internal/config"
	"github.com/bartekus/devblogger/internal/github"
	"github.com/bartekus/devblogger/internal/ledger"
	"github.com/bartekus/devblogger/internal/logging"
)

// app bundles the wired subsystems every command needs: settings, the
// processed-commit ledger, the provider registry, and the logger.
type app struct {
	settings *config.Settings
	ledger   *ledger.Store
	registry *ai.Registry
	log      zerolog.Logger
}

// newApp loads settings (honoring --config and the environment), opens the
// ledger, and builds the provider registry.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()

	level := "info"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	format, _ := cmd.Flags().GetString("log-format")
	log := logging.New(level, format)

	store, err := ledger.Open(settings.DatabasePath(), log)
	if err != nil {
		return nil, err
	}

	return &app{
		settings: settings,
		ledger:   store,
		registry: buildRegistry(settings, log),
		log:      log,
	}, nil
}

func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing ledger")
	}
}

func buildRegistry(settings *config.Settings, log zerolog.Logger) *ai.Registry {
	registry := ai.NewRegistry(log)

	chatgpt := settings.Provider("chatgpt")
	registry.Register(ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:      chatgpt.APIKey,
		Model:       chatgpt.Model,
		BaseURL:     chatgpt.BaseURL,
		MaxTokens:   chatgpt.MaxTokens,
		Temperature: chatgpt.Temperature,
	}, log))

	gemini := settings.Provider("gemini")
	registry.Register(ai.NewGemini(ai.GeminiConfig{
		APIKey:      gemini.APIKey,
		Model:       gemini.Model,
		BaseURL:     gemini.BaseURL,
		MaxTokens:   gemini.MaxTokens,
		Temperature: gemini.Temperature,
	}, log))

	ollama := settings.Provider("ollama")
	registry.Register(ai.NewOllama(ai.OllamaConfig{
		BaseURL:     ollama.BaseURL,
		Model:       ollama.Model,
		MaxTokens:   ollama.MaxTokens,
		Temperature: ollama.Temperature,
	}, log))

	if active := settings.ActiveProvider(); active != "" {
		if err := registry.SetActive(active); err != nil {
			log.Warn().Str("provider", active).Msg("configured active provider is unknown")
		}
	}
	return registry
}

// githubToken resolves the API token: GITHUB_TOKEN wins, then the saved
// OAuth token.
func (a *app) githubToken() (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	token, err := github.LoadToken(a.settings.TokenPath())
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", clierr.New(clierr.CodeAuth, "not logged in: run 'devblogger login' or set GITHUB_TOKEN")
	}
	return token.AccessToken, nil
}

func (a *app) githubClient(ctx context.Context) (*github.Client, error) {
	token, err := a.githubToken()
	if err != nil {
		return nil, err
	}
	return github.NewClient(ctx, token, a.settings.GitHub().APIBaseURL, a.log)
}

func (a *app) blogManager() (*blog.Manager, error) {
	return blog.NewManager(a.registry, a.settings, a.ledger, a.log)
}
