// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command against an isolated settings file and
// returns captured stdout.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs(append(args, "--config", configPath, "--log-format", "json"))

	err := cmd.Execute()
	return b.String(), err
}

func TestConfigGetAndSet(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	out, err := run(t, configPath, "config", "get", "ai.default_provider")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if !strings.Contains(out, "chatgpt") {
		t.Errorf("expected default provider chatgpt, got %q", out)
	}

	if _, err := run(t, configPath, "config", "set", "ai.default_provider", "ollama"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err = run(t, configPath, "config", "get", "ai.default_provider")
	if err != nil {
		t.Fatalf("config get after set failed: %v", err)
	}
	if !strings.Contains(out, "ollama") {
		t.Errorf("expected ollama after set, got %q", out)
	}

	// Typed coercion: booleans round-trip as booleans.
	if _, err := run(t, configPath, "config", "set", "app.debug", "true"); err != nil {
		t.Fatalf("config set bool failed: %v", err)
	}
	out, err = run(t, configPath, "config", "get", "app.debug")
	if err != nil {
		t.Fatalf("config get bool failed: %v", err)
	}
	if !strings.Contains(out, "true") || strings.Contains(out, `"true"`) {
		t.Errorf("expected unquoted true, got %q", out)
	}

	if _, err := run(t, configPath, "config", "get", "no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestEntriesListEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	out, err := run(t, configPath, "entries", "list")
	if err != nil {
		t.Fatalf("entries list failed: %v", err)
	}
	if strings.TrimSpace(out) != "" {
		t.Errorf("expected no output for empty index, got %q", out)
	}
}

func TestEntriesShowUnknownID(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	if _, err := run(t, configPath, "entries", "show", "nope"); err == nil {
		t.Error("expected error for unknown entry id")
	}
}

func TestProvidersSetActiveUnknown(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	if _, err := run(t, configPath, "providers", "set-active", "nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestProvidersConfigure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	if _, err := run(t, configPath, "providers", "configure", "ollama",
		"--model", "codellama", "--base-url", "http://gpu-box:11434"); err != nil {
		t.Fatalf("providers configure failed: %v", err)
	}

	out, err := run(t, configPath, "config", "get", "ai.providers.ollama.model")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if !strings.Contains(out, "codellama") {
		t.Errorf("expected codellama after configure, got %q", out)
	}

	// Untouched fields keep their previous values.
	out, err = run(t, configPath, "config", "get", "ai.providers.ollama.base_url")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if !strings.Contains(out, "http://gpu-box:11434") {
		t.Errorf("expected configured base url, got %q", out)
	}

	if _, err := run(t, configPath, "providers", "configure", "nope", "--model", "x"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestReposSubcommandsRegistered(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	out, err := run(t, configPath, "repos", "--help")
	if err != nil {
		t.Fatalf("repos help failed: %v", err)
	}
	for _, sub := range []string{"list", "search", "show", "branches"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected repos subcommand %q in help", sub)
		}
	}
}
