// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ai defines the text-generation provider abstraction and its
// concrete backends (OpenAI, Gemini, Ollama).
package ai

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Request timeout for generation calls. Local models can be slow.
const generateTimeout = 5 * time.Minute

// ErrNotConfigured is returned by providers missing credentials.
var ErrNotConfigured = errors.New("provider is not configured")

// Response is the result of a single generation call.
type Response struct {
	Text         string
	Model        string
	Provider     string
	TokensUsed   int
	FinishReason string
}

// Options tunes a generation call. Zero MaxTokens and nil Temperature fall
// back to the provider's configured defaults.
type Options struct {
	MaxTokens   int
	Temperature *float64
}

// Status is a point-in-time snapshot of a provider's health.
type Status struct {
	Name       string   `json:"name"`
	Model      string   `json:"model"`
	Configured bool     `json:"configured"`
	Available  bool     `json:"available"`
	Issues     []string `json:"issues,omitempty"`
}

// Provider is a text-generation backend.
type Provider interface {
	// Name is the stable provider identifier ("chatgpt", "gemini", "ollama").
	Name() string
	// Model is the currently configured model.
	Model() string
	// Configured reports whether the provider has what it needs to generate.
	Configured() bool
	// TestConnection verifies the backend is reachable with the current
	// configuration.
	TestConnection(ctx context.Context) error
	// Generate produces text for the prompt.
	Generate(ctx context.Context, prompt string, opts Options) (*Response, error)
	// Models lists models available on the backend.
	Models(ctx context.Context) ([]string, error)
}

// keyValidator is implemented by providers whose credentials have a
// recognizable shape that can be checked without calling the API.
type keyValidator interface {
	ValidKey() bool
}

// StatusOf assembles a Status for any provider.
func StatusOf(ctx context.Context, p Provider) Status {
	st := Status{
		Name:       p.Name(),
		Model:      p.Model(),
		Configured: p.Configured(),
	}
	if !st.Configured {
		st.Issues = append(st.Issues, p.Name()+" provider is not configured")
		return st
	}
	if kv, ok := p.(keyValidator); ok && !kv.ValidKey() {
		st.Issues = append(st.Issues, p.Name()+" api key format looks invalid")
	}
	if err := p.TestConnection(ctx); err != nil {
		st.Issues = append(st.Issues, err.Error())
		return st
	}
	st.Available = true
	return st
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: generateTimeout}
}
