package ui

import (
	"strings"
	"testing"
)

func TestRenderOutcome(t *testing.T) {
	noColor = false
	defer func() { noColor = false }()

	for _, tc := range []struct {
		in   string
		code string
	}{
		{"matched", "114"},
		{"MISMATCH", "203"},
		{"invalid", "179"},
		{"PERMIT_EXPIRED", "179"},
	} {
		got := RenderOutcome(tc.in)
		if !strings.Contains(got, "38;5;"+tc.code+"m") || !strings.Contains(got, tc.in) {
			t.Errorf("RenderOutcome(%q) = %q, want color %s", tc.in, got, tc.code)
		}
	}
	if got := RenderOutcome("other"); got != "other" {
		t.Errorf("unknown outcome should be uncolored, got %q", got)
	}

	ForceNoColor()
	if got := RenderOutcome("matched"); got != "matched" {
		t.Errorf("ForceNoColor: got %q", got)
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should disable color")
	}

	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE=1 should force color")
	}

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Error("CLICOLOR=0 should disable color")
	}
}
