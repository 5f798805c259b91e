// SPDX-License-Identifier: AGPL-3.0-or-later
package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeOf(t *testing.T) {
	if got := ExitCodeOf(nil); got != 0 {
		t.Errorf("nil error: got %d, want 0", got)
	}
	if got := ExitCodeOf(errors.New("plain")); got != CodeGeneric {
		t.Errorf("plain error: got %d, want %d", got, CodeGeneric)
	}
	if got := ExitCodeOf(New(CodeAuth, "not logged in")); got != CodeAuth {
		t.Errorf("exit error: got %d, want %d", got, CodeAuth)
	}

	// The code survives wrapping by fmt.Errorf.
	wrapped := fmt.Errorf("outer: %w", New(CodeRemote, "api unavailable"))
	if got := ExitCodeOf(wrapped); got != CodeRemote {
		t.Errorf("wrapped exit error: got %d, want %d", got, CodeRemote)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("token expired")
	err := Wrap(CodeAuth, "github login", cause)

	if !errors.Is(err, cause) {
		t.Error("Wrap lost the cause")
	}
	if err.Error() != "github login: token expired" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestNormalize(t *testing.T) {
	if got := ExitCodeOf(New(0, "zero")); got != CodeGeneric {
		t.Errorf("code 0 should normalize to %d, got %d", CodeGeneric, got)
	}
}
