// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		require.Equal(t, "AIzaTestKey", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 1)
		assert.Equal(t, "summarize my week", req.Contents[0].Parts[0].Text)
		assert.Equal(t, 1200, req.GenerationConfig.MaxOutputTokens)

		fmt.Fprint(w, `{
			"candidates": [{
				"content": {"parts": [{"text": "Part one. "}, {"text": "Part two."}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 30, "candidatesTokenCount": 12}
		}`)
	}))
	defer srv.Close()

	p := NewGemini(GeminiConfig{APIKey: "AIzaTestKey", BaseURL: srv.URL}, zerolog.Nop())

	resp, err := p.Generate(context.Background(), "summarize my week", Options{MaxTokens: 1200})
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", resp.Text)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, "gemini-pro", resp.Model)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	p := NewGemini(GeminiConfig{APIKey: "AIzaTestKey", BaseURL: srv.URL}, zerolog.Nop())

	_, err := p.Generate(context.Background(), "hello", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiNotConfigured(t *testing.T) {
	p := NewGemini(GeminiConfig{}, zerolog.Nop())

	assert.False(t, p.Configured())
	_, err := p.Generate(context.Background(), "hello", Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models", r.URL.Path)
		fmt.Fprint(w, `{"models": [
			{"name": "models/gemini-pro"},
			{"name": "models/gemini-pro-vision"},
			{"name": "models/text-bison-001"}
		]}`)
	}))
	defer srv.Close()

	p := NewGemini(GeminiConfig{APIKey: "AIzaTestKey", BaseURL: srv.URL}, zerolog.Nop())

	models, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-pro", "gemini-pro-vision"}, models)
}

func TestValidGeminiKey(t *testing.T) {
	assert.True(t, ValidGeminiKey("AIza"+"Sy0123456789abcdefghijklmnopqrstuvw"))
	assert.False(t, ValidGeminiKey("AIzaShort"))
	assert.False(t, ValidGeminiKey("sk-0123456789abcdefghijklmnopqrstuvwxyz1"))
}

func TestGeminiStatusFlagsBadKeyShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models": [{"name": "models/gemini-pro"}]}`)
	}))
	defer srv.Close()

	p := NewGemini(GeminiConfig{APIKey: "AIzaShort", BaseURL: srv.URL}, zerolog.Nop())
	st := StatusOf(context.Background(), p)
	assert.True(t, st.Configured)
	assert.True(t, st.Available)
	require.Len(t, st.Issues, 1)
	assert.Contains(t, st.Issues[0], "api key format looks invalid")

	good := NewGemini(GeminiConfig{APIKey: "AIza" + "Sy0123456789abcdefghijklmnopqrstuvw", BaseURL: srv.URL}, zerolog.Nop())
	assert.Empty(t, StatusOf(context.Background(), good).Issues)
}
