// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config manages the devblogger settings file.
//
// Settings live in a single JSON document (~/.devblogger/config.json by
// default). Values loaded from disk are deep-merged over the built-in
// defaults, so new keys appear for existing installations without migration.
// Keys are addressed with dot paths, e.g. "ai.default_provider".
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bartekus/devblogger/internal/fsutil"
)

const (
	// EnvConfigPath overrides the settings file location.
	EnvConfigPath = "DEVBLOGGER_CONFIG"

	defaultDirName  = ".devblogger"
	defaultFileName = "config.json"
)

// DefaultPrompt is the prompt used for blog generation when the user has not
// configured one.
const DefaultPrompt = "Write a concise, informative, and interesting development blog entry " +
	"based on the provided commit information. Focus on the most significant " +
	"changes and improvements. Write in first person as if you are the " +
	"developer describing your work. Keep the tone professional but engaging. " +
	"Highlight technical achievements, challenges overcome, and the impact " +
	"of the changes. Structure the post with a clear introduction, main content " +
	"describing the key changes, and a conclusion if appropriate."

// Settings provides dot-path access to the configuration document and
// persists mutations back to disk.
type Settings struct {
	path   string
	values map[string]any
}

// GitHubConfig is the GitHub OAuth and API configuration.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	APIBaseURL   string
}

// ProviderConfig holds the configuration of a single AI provider.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultPath returns the settings file path, honoring EnvConfigPath.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName, defaultFileName), nil
}

// Load reads the settings file at path, creating it with defaults when it
// does not exist. Loaded values are merged over the defaults.
func Load(path string) (*Settings, error) {
	s := &Settings{path: path, values: defaults()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("writing default settings: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	var loaded map[string]any
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	s.values = merge(defaults(), loaded)
	return s, nil
}

func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":    "devblogger",
			"version": "0.1.0",
			"debug":   false,
		},
		"paths": map[string]any{
			"generated_entries": "Generated_entries",
			"database":          "devblogger.db",
		},
		"github": map[string]any{
			"client_id":     "",
			"client_secret": "",
			"redirect_uri":  "http://localhost:8080/callback",
			"scope":         "read:user repo",
			"api_base_url":  "https://api.github.com",
		},
		"ai": map[string]any{
			"default_provider": "chatgpt",
			"providers": map[string]any{
				"chatgpt": map[string]any{
					"api_key":     "",
					"model":       "gpt-4",
					"max_tokens":  2000,
					"temperature": 0.7,
				},
				"gemini": map[string]any{
					"api_key":     "",
					"model":       "gemini-pro",
					"max_tokens":  2000,
					"temperature": 0.7,
				},
				"ollama": map[string]any{
					"base_url":    "http://localhost:11434",
					"model":       "llama2",
					"max_tokens":  2000,
					"temperature": 0.7,
				},
			},
		},
		"blog": map[string]any{
			"file_extension":        ".md",
			"include_commit_hashes": true,
			"include_timestamps":    true,
			"default_prompt":        DefaultPrompt,
		},
	}
}

// merge recursively overlays override onto base. Nested maps are merged,
// everything else is replaced.
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = merge(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (s *Settings) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return fsutil.AtomicWrite(s.path, append(data, '\n'))
}

// Path returns the settings file location.
func (s *Settings) Path() string { return s.path }

// Dir returns the directory holding the settings file. Relative paths in the
// "paths" section are resolved against it.
func (s *Settings) Dir() string { return filepath.Dir(s.path) }

// Get returns the value at the dot path, or false when absent.
func (s *Settings) Get(key string) (any, bool) {
	cur := any(s.values)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at key, or def when absent or not a string.
func (s *Settings) GetString(key, def string) string {
	if v, ok := s.Get(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

// GetInt returns the integer at key. JSON numbers decode as float64, so both
// representations are accepted.
func (s *Settings) GetInt(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

// GetFloat returns the float at key, or def.
func (s *Settings) GetFloat(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

// GetBool returns the boolean at key, or def.
func (s *Settings) GetBool(key string, def bool) bool {
	if v, ok := s.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Set stores value at the dot path and persists the settings file.
// Intermediate maps are created as needed.
func (s *Settings) Set(key string, value any) error {
	parts := strings.Split(key, ".")
	cur := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return s.save()
}

// resolvePath anchors a configured path under the settings directory unless
// it is already absolute.
func (s *Settings) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Dir(), p)
}

// EntriesDir returns the directory for generated blog entries.
func (s *Settings) EntriesDir() string {
	return s.resolvePath(s.GetString("paths.generated_entries", "Generated_entries"))
}

// DatabasePath returns the processed-commit ledger location.
func (s *Settings) DatabasePath() string {
	return s.resolvePath(s.GetString("paths.database", "devblogger.db"))
}

// TokenPath returns where the GitHub OAuth token is persisted.
func (s *Settings) TokenPath() string {
	return filepath.Join(s.Dir(), "token.json")
}

// GitHub returns the GitHub configuration section.
func (s *Settings) GitHub() GitHubConfig {
	return GitHubConfig{
		ClientID:     s.GetString("github.client_id", ""),
		ClientSecret: s.GetString("github.client_secret", ""),
		RedirectURI:  s.GetString("github.redirect_uri", "http://localhost:8080/callback"),
		Scope:        s.GetString("github.scope", "read:user repo"),
		APIBaseURL:   s.GetString("github.api_base_url", "https://api.github.com"),
	}
}

// Provider returns the configuration of a single AI provider.
func (s *Settings) Provider(name string) ProviderConfig {
	prefix := "ai.providers." + name + "."
	return ProviderConfig{
		APIKey:      s.GetString(prefix+"api_key", ""),
		BaseURL:     s.GetString(prefix+"base_url", ""),
		Model:       s.GetString(prefix+"model", ""),
		MaxTokens:   s.GetInt(prefix+"max_tokens", 2000),
		Temperature: s.GetFloat(prefix+"temperature", 0.7),
	}
}

// SetProvider persists the full configuration of a single AI provider.
// Callers merge partial updates into Provider(name) first.
func (s *Settings) SetProvider(name string, cfg ProviderConfig) error {
	return s.Set("ai.providers."+name, map[string]any{
		"api_key":     cfg.APIKey,
		"base_url":    cfg.BaseURL,
		"model":       cfg.Model,
		"max_tokens":  cfg.MaxTokens,
		"temperature": cfg.Temperature,
	})
}

// ActiveProvider returns the configured default AI provider name.
func (s *Settings) ActiveProvider() string {
	return s.GetString("ai.default_provider", "chatgpt")
}

// SetActiveProvider persists the default AI provider name.
func (s *Settings) SetActiveProvider(name string) error {
	return s.Set("ai.default_provider", name)
}

// BlogPrompt returns the configured generation prompt.
func (s *Settings) BlogPrompt() string {
	return s.GetString("blog.default_prompt", DefaultPrompt)
}

// Reset restores all settings to defaults and persists them.
func (s *Settings) Reset() error {
	s.values = defaults()
	return s.save()
}

// Export writes the current settings document to path.
func (s *Settings) Export(path string) error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("exporting settings: %w", err)
	}
	return nil
}

// Import merges a settings document from path over the defaults and persists
// the result.
func (s *Settings) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("importing settings: %w", err)
	}
	var loaded map[string]any
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing imported settings: %w", err)
	}
	s.values = merge(defaults(), loaded)
	return s.save()
}

// ApplyEnv overlays environment variables onto the loaded settings without
// persisting them. A .env file next to the working directory is honored when
// present.
func (s *Settings) ApplyEnv() {
	_ = godotenv.Load(".env")

	overrides := map[string]string{
		"GITHUB_CLIENT_ID":     "github.client_id",
		"GITHUB_CLIENT_SECRET": "github.client_secret",
		"OPENAI_API_KEY":       "ai.providers.chatgpt.api_key",
		"GEMINI_API_KEY":       "ai.providers.gemini.api_key",
		"OLLAMA_BASE_URL":      "ai.providers.ollama.base_url",
	}
	for env, key := range overrides {
		if v := os.Getenv(env); v != "" {
			s.setInMemory(key, v)
		}
	}
}

func (s *Settings) setInMemory(key string, value any) {
	parts := strings.Split(key, ".")
	cur := s.values
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
