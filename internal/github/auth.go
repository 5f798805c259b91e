// SPDX-License-Identifier: AGPL-3.0-or-later
package github

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

// ErrNotConfigured is returned when the OAuth client credentials are missing.
var ErrNotConfigured = errors.New("github oauth is not configured: set client_id and client_secret")

// loginTimeout bounds how long we wait for the browser redirect.
const loginTimeout = 5 * time.Minute

const successPage = `<!DOCTYPE html>
<html>
<head><title>devblogger - Authentication Successful</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>Authentication Successful</h1>
<p>You can close this window and return to devblogger.</p>
</body>
</html>
`

// Authenticator runs the OAuth authorization-code flow with a loopback
// callback server, and persists the resulting token.
type Authenticator struct {
	clientID     string
	clientSecret string
	scopes       []string
	log          zerolog.Logger
}

// NewAuthenticator builds an Authenticator from the GitHub OAuth app
// credentials. scope is the space-separated GitHub scope string.
func NewAuthenticator(clientID, clientSecret, scope string, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       strings.Fields(scope),
		log:          log,
	}
}

// Configured reports whether OAuth client credentials are present.
func (a *Authenticator) Configured() bool {
	return a.clientID != "" && a.clientSecret != ""
}

// Login runs the authorization-code flow: it starts a loopback callback
// server, prints the authorization URL for the user to open, waits for the
// redirect, and exchanges the code for a token.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	listener, port, err := listenLoopback(8080, 8089)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Scopes:       a.scopes,
		Endpoint:     githuboauth.Endpoint,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", port),
	}

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			errCh <- errors.New("oauth callback state mismatch")
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			errCh <- errors.New("oauth callback without authorization code")
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, successPage)
		codeCh <- code
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer server.Shutdown(context.Background()) //nolint:errcheck

	authURL := cfg.AuthCodeURL(state)
	a.log.Info().Int("port", port).Msg("waiting for oauth callback")
	fmt.Fprintf(os.Stderr, "Open this URL in your browser to authorize devblogger:\n\n  %s\n\n", authURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(loginTimeout):
		return nil, errors.New("authentication timeout: no authorization code received")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	a.log.Info().Msg("github authentication succeeded")
	return token, nil
}

// listenLoopback binds the first free loopback port in [from, to].
func listenLoopback(from, to int) (net.Listener, int, error) {
	for port := from; port <= to; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return l, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no free callback port in range %d-%d", from, to)
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SaveToken persists an OAuth token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// LoadToken reads a persisted OAuth token. It returns nil without error when
// no token has been saved.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return &token, nil
}

// RemoveToken deletes the persisted token if present.
func RemoveToken(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
