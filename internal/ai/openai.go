// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	openAIName        = "chatgpt"
	openAIDefaultBase = "https://api.openai.com"

	// System message sent with every blog-generation request.
	openAISystemPrompt = "You are a helpful assistant that writes professional development blog entries."
)

// OpenAI talks to the OpenAI chat-completions API.
type OpenAI struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpc       *http.Client
	log         zerolog.Logger
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// NewOpenAI builds the provider. Zero-valued fields get defaults.
func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIDefaultBase
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &OpenAI{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpc:       newHTTPClient(),
		log:         log,
	}
}

func (o *OpenAI) Name() string  { return openAIName }
func (o *OpenAI) Model() string { return o.model }

// Configured reports whether an API key is present.
func (o *OpenAI) Configured() bool { return o.apiKey != "" }

// ValidOpenAIKey checks the key shape without calling the API.
func ValidOpenAIKey(key string) bool {
	return strings.HasPrefix(key, "sk-") && len(key) > 20
}

// ValidKey reports whether the configured key has the expected shape.
func (o *OpenAI) ValidKey() bool { return ValidOpenAIKey(o.apiKey) }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Generate runs a chat completion with a fixed system message and the prompt
// as the user message.
func (o *OpenAI) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
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

	reqBody := openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	var resp openAIChatResponse
	if err := o.post(ctx, "/v1/chat/completions", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Text:         strings.TrimSpace(choice.Message.Content),
		Model:        o.model,
		Provider:     openAIName,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: choice.FinishReason,
	}, nil
}

// TestConnection lists models as a cheap reachability check.
func (o *OpenAI) TestConnection(ctx context.Context) error {
	if !o.Configured() {
		return ErrNotConfigured
	}
	_, err := o.Models(ctx)
	return err
}

// Models lists the GPT models the key has access to.
func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	httpResp, err := o.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai models request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError("openai", httpResp)
	}

	var resp openAIModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding models response: %w", err)
	}

	var models []string
	for _, m := range resp.Data {
		if strings.Contains(m.ID, "gpt") {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

func (o *OpenAI) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	httpResp, err := o.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return apiError("openai", httpResp)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding openai response: %w", err)
	}
	return nil
}

// apiError builds an error from a non-200 provider response, including a
// truncated body for diagnosis.
func apiError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s api error: %d - %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}
