// internal/tui/statusbar_test.go
package tui

import (
	"regexp"
	"strings"
	"testing"
)

// stripANSI removes ANSI escape codes from a string for width measurement
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

func TestStatusBar_Render(t *testing.T) {
	bar := NewStatusBar("bash -c make", "seccomp")
	bar.SetDimensions(60, 24)

	rendered := bar.Content()

	// Should contain key components
	if !strings.Contains(rendered, "exectrace") {
		t.Errorf("expected 'exectrace' in bar, got %q", rendered)
	}
	if !strings.Contains(rendered, "seccomp") {
		t.Errorf("expected mode in bar, got %q", rendered)
	}
	if !strings.Contains(rendered, "bash -c make") {
		t.Errorf("expected command in bar, got %q", rendered)
	}
}

func TestStatusBar_NarrowWidth(t *testing.T) {
	bar := NewStatusBar("bash -c 'some very long command line that should be truncated'", "seccomp")
	bar.SetDimensions(40, 24)

	rendered := bar.Content()

	// Mode should be preserved, command may be dropped
	if !strings.Contains(rendered, "seccomp") {
		t.Errorf("expected mode preserved in narrow bar, got %q", rendered)
	}
	// Strip ANSI codes and use rune count for width check
	stripped := stripANSI(rendered)
	runeCount := len([]rune(stripped))
	if runeCount > 40 {
		t.Errorf("expected bar width <= 40 runes, got %d", runeCount)
	}
}

func TestStatusBar_RenderPositioning(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetDimensions(60, 24)

	rendered := bar.Render()

	// Render positions the cursor at the bottom row and clears the line.
	if !strings.Contains(rendered, "\x1b[24;1H") {
		t.Errorf("expected cursor move to bottom row, got %q", rendered)
	}
	if !strings.Contains(rendered, "\x1b[2K") {
		t.Errorf("expected clear line escape, got %q", rendered)
	}
	// Should NOT contain save/restore cursor (Writer handles the cursor)
	if strings.Contains(rendered, "\x1b[s") {
		t.Errorf("unexpected save cursor escape, got %q", rendered)
	}
	if strings.Contains(rendered, "\x1b[u") {
		t.Errorf("unexpected restore cursor escape, got %q", rendered)
	}
	if !strings.Contains(rendered, "exectrace") {
		t.Errorf("expected status bar content, got %q", rendered)
	}
}

func TestStatusBar_RenderZeroHeight(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetDimensions(60, 0)

	if rendered := bar.Render(); rendered != "" {
		t.Errorf("expected empty render at height 0, got %q", rendered)
	}
}

func TestStatusBar_ModeDisplay(t *testing.T) {
	tests := []struct {
		mode      string
		wantColor string
	}{
		{"seccomp", "\x1b[36m"}, // cyan
		{"ptrace", "\x1b[35m"},  // magenta
		{"unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			bar := NewStatusBar("bash", tt.mode)
			bar.SetDimensions(80, 24)
			content := bar.Content()

			if !strings.Contains(content, tt.mode) {
				t.Errorf("expected mode %q in bar, got %q", tt.mode, content)
			}
			if tt.wantColor != "" && !strings.Contains(content, tt.wantColor) {
				t.Errorf("expected color %q for mode %q, got %q", tt.wantColor, tt.mode, content)
			}
		})
	}
}

func TestStatusBar_CountersDisplay(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetCounters(12, 3)
	bar.SetLastExec("cc1")
	bar.SetDimensions(80, 24)

	content := bar.Content()

	if !strings.Contains(content, "12 execs") {
		t.Errorf("expected exec counter in bar, got %q", content)
	}
	if !strings.Contains(content, "3 procs") {
		t.Errorf("expected process counter in bar, got %q", content)
	}
	if !strings.Contains(content, "cc1") {
		t.Errorf("expected last exec comm in bar, got %q", content)
	}
	// Counters should be dim
	if !strings.Contains(content, "\x1b[2m") {
		t.Errorf("expected dim escape for counters, got %q", content)
	}
}

func TestStatusBar_DarkGrayBackground(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetDimensions(80, 24)

	content := bar.Content()

	// Should use dark gray background instead of reverse video
	if !strings.Contains(content, "\x1b[48;5;236m") {
		t.Errorf("expected dark gray background, got %q", content)
	}
	if strings.Contains(content, "\x1b[7m") {
		t.Errorf("unexpected reverse video escape, got %q", content)
	}
}

func TestStatusBar_TruncationCascade(t *testing.T) {
	bar := NewStatusBar("cargo build --release --workspace", "seccomp")
	bar.SetCounters(100, 7)
	bar.SetLastExec("rustc")

	// Wide enough for everything
	bar.SetDimensions(100, 24)
	content := bar.Content()
	if !strings.Contains(content, "cargo build") {
		t.Error("expected command at width 100")
	}

	// Narrow: should drop the command
	bar.SetDimensions(50, 24)
	content = bar.Content()
	stripped := stripANSI(content)
	if strings.Contains(stripped, "cargo build") {
		t.Error("expected command dropped at width 50")
	}
	if !strings.Contains(content, "execs") {
		t.Error("expected counters preserved at width 50")
	}

	// Very narrow: should drop counters too
	bar.SetDimensions(22, 24)
	content = bar.Content()
	stripped = stripANSI(content)
	if strings.Contains(stripped, "execs") {
		t.Error("expected counters dropped at width 22")
	}

	// Extremely narrow: just spaces
	bar.SetDimensions(5, 24)
	content = bar.Content()
	stripped = stripANSI(content)
	if len([]rune(stripped)) != 5 {
		t.Errorf("expected 5 runes at width 5, got %d", len([]rune(stripped)))
	}
}

func TestStatusBar_MessageOverlay(t *testing.T) {
	bar := NewStatusBar("bash -c make", "seccomp")
	bar.SetDimensions(80, 24)

	// Normal content should show the tracing state
	normal := bar.Content()
	if !strings.Contains(normal, "seccomp") {
		t.Errorf("expected mode in normal content, got %q", normal)
	}
	if !strings.Contains(normal, "bash -c make") {
		t.Errorf("expected command in normal content, got %q", normal)
	}

	// Set message overlay
	bar.SetMessage("Escape: d (detach) · k (kill)")
	message := bar.Content()

	// Should show message, not normal content
	if !strings.Contains(message, "Escape") {
		t.Errorf("expected message text in overlay, got %q", message)
	}
	if !strings.Contains(message, "detach") {
		t.Errorf("expected 'detach' in message, got %q", message)
	}
	if strings.Contains(stripANSI(message), "bash -c make") {
		t.Errorf("expected command hidden when message is set, got %q", message)
	}
	if strings.Contains(stripANSI(message), "seccomp") {
		t.Errorf("expected mode hidden when message is set, got %q", message)
	}

	// Clear message
	bar.ClearMessage()
	restored := bar.Content()

	// Should restore normal content
	if !strings.Contains(restored, "bash -c make") {
		t.Errorf("expected command restored after clearing message, got %q", restored)
	}
	if strings.Contains(restored, "Escape") {
		t.Errorf("expected message cleared, got %q", restored)
	}
}

func TestStatusBar_MessageOverlay_Width(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetDimensions(40, 24)

	// Set a message
	bar.SetMessage("Press d to detach or k to kill")
	content := bar.Content()

	// Message should be centered and fit width
	stripped := stripANSI(content)
	runeCount := len([]rune(stripped))
	if runeCount != 40 {
		t.Errorf("expected message width = 40 runes, got %d: %q", runeCount, stripped)
	}
}

func TestStatusBar_MessageOverlay_LongMessage(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetDimensions(30, 24)

	// Set a message longer than width
	longMsg := "This is a very long message that should be truncated to fit"
	bar.SetMessage(longMsg)
	content := bar.Content()

	// Should be truncated to fit
	stripped := stripANSI(content)
	runeCount := len([]rune(stripped))
	if runeCount != 30 {
		t.Errorf("expected truncated message width = 30 runes, got %d: %q", runeCount, stripped)
	}
}

func TestStatusBar_CtrlSlashHint(t *testing.T) {
	bar := NewStatusBar("bash", "seccomp")
	bar.SetCounters(2, 1)
	bar.SetDimensions(80, 24)

	content := bar.Content()
	stripped := stripANSI(content)

	// Should show ctrl+/ hint
	if !strings.Contains(stripped, "(ctrl+/)") {
		t.Errorf("expected (ctrl+/) hint in content, got: %q", stripped)
	}

	// Should still show all the normal content
	if !strings.Contains(content, "seccomp") {
		t.Errorf("expected mode, got: %q", stripped)
	}
	if !strings.Contains(content, "bash") {
		t.Errorf("expected command, got: %q", stripped)
	}

	// Hint should be dimmed
	if !strings.Contains(content, "\x1b[2m") {
		t.Errorf("expected dim style for hint, got: %q", content)
	}
}

func TestStatusBar_CtrlSlashHint_TruncationCascade(t *testing.T) {
	bar := NewStatusBar("cargo build --release", "seccomp")
	bar.SetCounters(4, 2)

	tests := []struct {
		width    int
		wantHint bool
		name     string
	}{
		{80, true, "wide: hint visible"},
		{72, true, "medium: hint visible"},
		{65, false, "narrow: hint dropped"},
		{45, false, "narrower: hint and command dropped"},
		{25, false, "very narrow: counters dropped too"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar.SetDimensions(tt.width, 24)
			content := bar.Content()
			stripped := stripANSI(content)

			hasHint := strings.Contains(stripped, "(ctrl+/)")
			if hasHint != tt.wantHint {
				t.Errorf("width %d: hasHint=%v, want %v. Content: %q",
					tt.width, hasHint, tt.wantHint, stripped)
			}

			// Verify width constraint
			runeCount := len([]rune(stripped))
			if runeCount != tt.width {
				t.Errorf("width %d: got %d runes, want %d", tt.width, runeCount, tt.width)
			}

			t.Logf("Width %d: %q", tt.width, stripped)
		})
	}
}
