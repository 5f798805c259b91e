// SPDX-License-Identifier: AGPL-3.0-or-later
package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	configured bool
	connErr    error
	resp       *Response
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Model() string    { return "fake-model" }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) TestConnection(ctx context.Context) error {
	if !f.configured {
		return ErrNotConfigured
	}
	return f.connErr
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	if !f.configured {
		return nil, ErrNotConfigured
	}
	return f.resp, nil
}

func (f *fakeProvider) Models(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func newTestRegistry(providers ...Provider) *Registry {
	r := NewRegistry(zerolog.Nop())
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func TestRegistryActivePromotesFirstConfigured(t *testing.T) {
	r := newTestRegistry(
		&fakeProvider{name: "chatgpt"},
		&fakeProvider{name: "gemini", configured: true},
		&fakeProvider{name: "ollama", configured: true},
	)

	active := r.Active()
	require.NotNil(t, active)
	assert.Equal(t, "gemini", active.Name())
	assert.Equal(t, "gemini", r.ActiveName())
}

func TestRegistrySetActive(t *testing.T) {
	r := newTestRegistry(
		&fakeProvider{name: "chatgpt", configured: true},
		&fakeProvider{name: "ollama", configured: true},
	)

	require.NoError(t, r.SetActive("ollama"))
	assert.Equal(t, "ollama", r.ActiveName())

	err := r.SetActive("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistryActiveEmpty(t *testing.T) {
	r := newTestRegistry(&fakeProvider{name: "chatgpt"})

	assert.Nil(t, r.Active())
	assert.Empty(t, r.ActiveName())
}

func TestRegistryConfiguredAndWorking(t *testing.T) {
	r := newTestRegistry(
		&fakeProvider{name: "chatgpt", configured: true, connErr: errors.New("401")},
		&fakeProvider{name: "gemini"},
		&fakeProvider{name: "ollama", configured: true},
	)

	assert.Equal(t, []string{"chatgpt", "ollama"}, r.Configured())
	assert.Equal(t, []string{"ollama"}, r.Working(context.Background()))
}

func TestRegistryRecommended(t *testing.T) {
	t.Run("active wins when working", func(t *testing.T) {
		r := newTestRegistry(
			&fakeProvider{name: "chatgpt", configured: true},
			&fakeProvider{name: "ollama", configured: true},
		)
		require.NoError(t, r.SetActive("ollama"))
		assert.Equal(t, "ollama", r.Recommended(context.Background()))
	})

	t.Run("falls back to first working", func(t *testing.T) {
		r := newTestRegistry(
			&fakeProvider{name: "chatgpt", configured: true, connErr: errors.New("401")},
			&fakeProvider{name: "ollama", configured: true},
		)
		require.NoError(t, r.SetActive("chatgpt"))
		assert.Equal(t, "ollama", r.Recommended(context.Background()))
	})

	t.Run("falls back to first configured", func(t *testing.T) {
		r := newTestRegistry(
			&fakeProvider{name: "chatgpt", configured: true, connErr: errors.New("401")},
		)
		assert.Equal(t, "chatgpt", r.Recommended(context.Background()))
	})

	t.Run("empty when nothing configured", func(t *testing.T) {
		r := newTestRegistry(&fakeProvider{name: "chatgpt"})
		assert.Empty(t, r.Recommended(context.Background()))
	})
}

func TestRegistryStatuses(t *testing.T) {
	r := newTestRegistry(
		&fakeProvider{name: "chatgpt", configured: true, connErr: errors.New("invalid key")},
		&fakeProvider{name: "gemini"},
	)

	statuses := r.Statuses(context.Background())
	require.Len(t, statuses, 2)

	assert.Equal(t, "chatgpt", statuses[0].Name)
	assert.True(t, statuses[0].Configured)
	assert.False(t, statuses[0].Available)
	assert.NotEmpty(t, statuses[0].Issues)

	assert.Equal(t, "gemini", statuses[1].Name)
	assert.False(t, statuses[1].Configured)
}
