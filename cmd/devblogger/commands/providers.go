// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/devblogger/cmd/devblogger/internal/clierr"
	"github.com/bartekus/devblogger/internal/ai"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect and configure AI providers",
	}
	cmd.AddCommand(newProvidersListCmd())
	cmd.AddCommand(newProvidersTestCmd())
	cmd.AddCommand(newProvidersSetActiveCmd())
	cmd.AddCommand(newProvidersConfigureCmd())
	cmd.AddCommand(newProvidersModelsCmd())
	cmd.AddCommand(newProvidersPullCmd())
	return cmd
}

func newProvidersConfigureCmd() *cobra.Command {
	var (
		apiKey      string
		model       string
		baseURL     string
		maxTokens   int
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "configure <name>",
		Short: "Persist credentials and generation defaults for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			name := args[0]
			if a.registry.Get(name) == nil {
				return clierr.Newf(clierr.CodeUsage, "unknown provider %q", name)
			}

			cfg := a.settings.Provider(name)
			flags := cmd.Flags()
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("model") {
				cfg.Model = model
			}
			if flags.Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if flags.Changed("max-tokens") {
				cfg.MaxTokens = maxTokens
			}
			if flags.Changed("temperature") {
				cfg.Temperature = temperature
			}

			if flags.Changed("api-key") {
				switch name {
				case "chatgpt":
					if !ai.ValidOpenAIKey(cfg.APIKey) {
						fmt.Fprintln(cmd.ErrOrStderr(), "warning: key does not look like an OpenAI key (sk-...)")
					}
				case "gemini":
					if !ai.ValidGeminiKey(cfg.APIKey) {
						fmt.Fprintln(cmd.ErrOrStderr(), "warning: key does not look like a Gemini key (AIza..., 39 chars)")
					}
				}
			}

			if err := a.settings.SetProvider(name, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s configuration\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&model, "model", "", "default model")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "default generation token budget")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "default sampling temperature")
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configuration and health of every provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			active := a.registry.ActiveName()
			out := cmd.OutOrStdout()
			for _, st := range a.registry.Statuses(cmd.Context()) {
				marker := " "
				if st.Name == active {
					marker = "*"
				}
				state := "not configured"
				if st.Available {
					state = "ok"
				} else if st.Configured {
					state = "configured, unreachable"
				}
				fmt.Fprintf(out, "%s %-8s model=%-20s %s\n", marker, st.Name, st.Model, state)
				for _, issue := range st.Issues {
					fmt.Fprintf(out, "    %s\n", issue)
				}
			}
			return nil
		},
	}
}

func newProvidersTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [name]",
		Short: "Test connectivity of one provider, or all configured ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			providers := a.registry.All()
			if len(args) == 1 {
				p := a.registry.Get(args[0])
				if p == nil {
					return clierr.Newf(clierr.CodeUsage, "unknown provider %q", args[0])
				}
				providers = []ai.Provider{p}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range providers {
				if !p.Configured() {
					fmt.Fprintf(out, "%-8s skipped (not configured)\n", p.Name())
					continue
				}
				if err := p.TestConnection(cmd.Context()); err != nil {
					fmt.Fprintf(out, "%-8s FAIL: %v\n", p.Name(), err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%-8s ok\n", p.Name())
			}
			if failed > 0 {
				return clierr.Newf(clierr.CodeRemote, "%d providers failed", failed)
			}
			return nil
		},
	}
}

func newProvidersSetActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <name>",
		Short: "Choose the provider used when none is specified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.registry.SetActive(args[0]); err != nil {
				return clierr.Wrap(clierr.CodeUsage, "setting active provider", err)
			}
			if err := a.settings.SetActiveProvider(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active provider: %s\n", args[0])
			return nil
		},
	}
}

func newProvidersModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models <name>",
		Short: "List models available on a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			p := a.registry.Get(args[0])
			if p == nil {
				return clierr.Newf(clierr.CodeUsage, "unknown provider %q", args[0])
			}

			models, err := p.Models(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeRemote, "listing models", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(models, "\n"))
			return nil
		},
	}
}

func newProvidersPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model onto the local Ollama server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ollama, ok := a.registry.Get("ollama").(*ai.Ollama)
			if !ok {
				return clierr.New(clierr.CodeGeneric, "ollama provider is not registered")
			}

			if err := ollama.Pull(cmd.Context(), args[0]); err != nil {
				return clierr.Wrap(clierr.CodeRemote, "pulling model", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s\n", args[0])
			return nil
		},
	}
}
