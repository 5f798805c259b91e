// SPDX-License-Identifier: AGPL-3.0-or-later
package github

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthenticatorConfigured(t *testing.T) {
	a := NewAuthenticator("", "", "read:user repo", zerolog.Nop())
	assert.False(t, a.Configured())

	a = NewAuthenticator("id", "secret", "read:user repo", zerolog.Nop())
	assert.True(t, a.Configured())
}

func TestTokenSaveLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth", "token.json")

	// No token yet: nil, no error.
	token, err := LoadToken(path)
	require.NoError(t, err)
	assert.Nil(t, token)

	want := &oauth2.Token{AccessToken: "gho_testtoken", TokenType: "bearer"}
	require.NoError(t, SaveToken(path, want))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	got, err := LoadToken(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "gho_testtoken", got.AccessToken)

	require.NoError(t, RemoveToken(path))
	got, err = LoadToken(path)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Removing twice is fine.
	require.NoError(t, RemoveToken(path))
}

func TestListenLoopbackFindsFreePort(t *testing.T) {
	l1, port1, err := listenLoopback(18080, 18089)
	require.NoError(t, err)
	defer l1.Close()

	// The second listener must skip the taken port.
	l2, port2, err := listenLoopback(18080, 18089)
	require.NoError(t, err)
	defer l2.Close()

	assert.NotEqual(t, port1, port2)
}

func TestRandomStateIsUnique(t *testing.T) {
	a, err := randomState()
	require.NoError(t, err)
	b, err := randomState()
	require.NoError(t, err)

	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
}
