// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ollamaName        = "ollama"
	ollamaDefaultBase = "http://localhost:11434"
)

// Ollama talks to a local Ollama inference server.
type Ollama struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpc       *http.Client
	log         zerolog.Logger
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewOllama builds the provider. Zero-valued fields get defaults.
func NewOllama(cfg OllamaConfig, log zerolog.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBase
	}
	if cfg.Model == "" {
		cfg.Model = "llama2"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &Ollama{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpc:       newHTTPClient(),
		log:         log,
	}
}

func (o *Ollama) Name() string  { return ollamaName }
func (o *Ollama) Model() string { return o.model }

// Configured reports whether a base URL and model are set. Reachability of
// the local server is checked separately at runtime.
func (o *Ollama) Configured() bool {
	if o.baseURL == "" || o.model == "" {
		return false
	}
	u, err := url.Parse(o.baseURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type ollamaGenerateResponse struct {
	Response      string `json:"response"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
	Error         string `json:"error"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaPullProgress struct {
	Status string `json:"status"`
}

// Generate calls /api/generate with streaming disabled. Token counts are
// approximated by whitespace-separated words; the API does not report
// prompt usage.
func (o *Ollama) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	temperature := o.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	reqBody := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError("ollama", httpResp)
	}

	var resp ollamaGenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama api error: %s", resp.Error)
	}

	text := strings.TrimSpace(resp.Response)
	tokens := len(strings.Fields(prompt)) + len(strings.Fields(text))

	return &Response{
		Text:         text,
		Model:        o.model,
		Provider:     ollamaName,
		TokensUsed:   tokens,
		FinishReason: "stop",
	}, nil
}

// TestConnection checks that the server answers /api/tags.
func (o *Ollama) TestConnection(ctx context.Context) error {
	if !o.Configured() {
		return ErrNotConfigured
	}
	_, err := o.Models(ctx)
	return err
}

// Models lists the models installed on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building tags request: %w", err)
	}

	httpResp, err := o.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError("ollama", httpResp)
	}

	var resp ollamaTagsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding tags response: %w", err)
	}

	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// HasModel reports whether the named model is installed locally.
func (o *Ollama) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := o.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m == name {
			return true, nil
		}
	}
	return false, nil
}

// Pull downloads a model from the Ollama registry, logging progress lines as
// they stream in.
func (o *Ollama) Pull(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("marshaling pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ollama pull request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return apiError("ollama", httpResp)
	}

	scanner := bufio.NewScanner(httpResp.Body)
	for scanner.Scan() {
		var progress ollamaPullProgress
		if err := json.Unmarshal(scanner.Bytes(), &progress); err != nil {
			continue
		}
		if progress.Status != "" {
			o.log.Info().Str("model", name).Str("status", progress.Status).Msg("pull progress")
		}
	}
	return scanner.Err()
}
