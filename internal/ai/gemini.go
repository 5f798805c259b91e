// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	geminiName        = "gemini"
	geminiDefaultBase = "https://generativelanguage.googleapis.com"
)

// Gemini talks to the Google Generative Language API.
type Gemini struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpc       *http.Client
	log         zerolog.Logger
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// NewGemini builds the provider. Zero-valued fields get defaults.
func NewGemini(cfg GeminiConfig, log zerolog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBase
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &Gemini{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpc:       newHTTPClient(),
		log:         log,
	}
}

func (g *Gemini) Name() string  { return geminiName }
func (g *Gemini) Model() string { return g.model }

// Configured reports whether an API key is present.
func (g *Gemini) Configured() bool { return g.apiKey != "" }

// ValidGeminiKey checks the key shape without calling the API.
func ValidGeminiKey(key string) bool {
	return strings.HasPrefix(key, "AIza") && len(key) == 39
}

// ValidKey reports whether the configured key has the expected shape.
func (g *Gemini) ValidKey() bool { return ValidGeminiKey(g.apiKey) }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type geminiModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate calls generateContent on the configured model.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	temperature := g.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError("gemini", httpResp)
	}

	var resp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("gemini api error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini api returned no candidates")
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		b.WriteString(part.Text)
	}

	return &Response{
		Text:         strings.TrimSpace(b.String()),
		Model:        g.model,
		Provider:     geminiName,
		TokensUsed:   resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount,
		FinishReason: candidate.FinishReason,
	}, nil
}

// TestConnection lists models as a cheap reachability check.
func (g *Gemini) TestConnection(ctx context.Context) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	_, err := g.Models(ctx)
	return err
}

// Models lists available gemini model names, without the "models/" prefix.
func (g *Gemini) Models(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/v1beta/models?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building models request: %w", err)
	}

	httpResp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini models request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError("gemini", httpResp)
	}

	var resp geminiModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding models response: %w", err)
	}

	var models []string
	for _, m := range resp.Models {
		name := strings.TrimPrefix(m.Name, "models/")
		if strings.Contains(name, "gemini") {
			models = append(models, name)
		}
	}
	return models, nil
}
