package tui

import (
	"bytes"
	"strings"
	"testing"
)

func newTestWriter(buf *bytes.Buffer, width, height int) *Writer {
	bar := NewStatusBar("bash -c make", "seccomp")
	bar.SetDimensions(width, height)
	return NewWriter(buf, bar)
}

func TestWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)

	n, err := w.Write([]byte("hello world\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 12 {
		t.Errorf("expected n=12, got %d", n)
	}

	output := buf.String()

	// Should contain the original content
	if !strings.Contains(output, "hello world") {
		t.Errorf("expected original content in output")
	}

	// Footer is redrawn after every write in scroll mode
	if !strings.Contains(output, "exectrace") {
		t.Errorf("expected status bar in output")
	}
}

func TestWriter_Setup(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)

	if err := w.Setup(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should clear screen first
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen in setup, got %q", output)
	}

	// Should home cursor
	if !strings.Contains(output, "\x1b[H") {
		t.Errorf("expected cursor home in setup, got %q", output)
	}

	// Should set the scroll region to exclude the footer line
	if !strings.Contains(output, "\x1b[1;23r") {
		t.Errorf("expected DECSTBM scroll region in setup, got %q", output)
	}

	// Should render status bar
	if !strings.Contains(output, "exectrace") {
		t.Errorf("expected status bar in setup")
	}
}

func TestWriter_Write_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	_ = w.Setup()
	buf.Reset() // Clear setup output

	_, err := w.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Scroll mode passes the content through untouched
	if !strings.Contains(output, "hello") {
		t.Errorf("expected content in output")
	}

	// Footer repair uses DECSC/DECRC so the cursor is not disturbed
	if !strings.Contains(output, "\x1b7") {
		t.Errorf("expected save cursor before footer redraw, got %q", output)
	}
	if !strings.Contains(output, "\x1b8") {
		t.Errorf("expected restore cursor after footer redraw, got %q", output)
	}
	if !strings.Contains(output, "exectrace") {
		t.Errorf("expected footer redrawn after write")
	}
}

func TestWriter_Cleanup(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)

	if err := w.Cleanup(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should reset the scroll region
	if !strings.Contains(output, "\x1b[r") {
		t.Errorf("expected scroll region reset in cleanup, got %q", output)
	}

	// Should clear screen
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen in cleanup, got %q", output)
	}

	// Should show cursor
	if !strings.Contains(output, "\x1b[?25h") {
		t.Errorf("expected show cursor in cleanup, got %q", output)
	}
}

func TestWriter_Resize(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	w.Setup()
	buf.Reset() // Clear setup output

	// Simulate resize
	if err := w.Resize(80, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should clear screen and re-render
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen in resize, got %q", output)
	}

	// Should render status bar at new position
	if !strings.Contains(output, "exectrace") {
		t.Errorf("expected status bar in resize output")
	}
}

func TestWriter_Resize_Grow(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 80, 24) // Start at height 24
	w.Setup()
	buf.Reset() // Clear setup output

	// Grow from 24 to 30
	if err := w.Resize(80, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should clear and re-render - this avoids ghost status bars
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen on grow, got %q", output)
	}

	// Should set the scroll region for the new height
	if !strings.Contains(output, "\x1b[1;29r") {
		t.Errorf("expected scroll region for height 30, got %q", output)
	}

	// Should draw status bar at new row 30
	if !strings.Contains(output, "\x1b[30;1H") {
		t.Errorf("expected status bar at row 30, got %q", output)
	}
}

func TestWriter_Resize_Shrink(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 80, 30) // Start at height 30
	w.Setup()
	buf.Reset() // Clear setup output

	// Shrink from 30 to 24
	if err := w.Resize(80, 24); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should clear and re-render
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen on shrink, got %q", output)
	}

	// Should draw status bar at row 24
	if !strings.Contains(output, "\x1b[24;1H") {
		t.Errorf("expected status bar at row 24, got %q", output)
	}
}

func TestWriter_AltScreen_EntersCompositor(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	_ = w.Setup()
	buf.Reset()

	// Child enters alternate screen mode (editor, pager)
	_, err := w.Write([]byte("\x1b[?1049h"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Cleanup()

	w.mu.Lock()
	alt := w.altScreen
	w.mu.Unlock()
	if !alt {
		t.Error("expected compositor mode after alt screen enter")
	}

	output := buf.String()

	// The real terminal should enter the alternate screen too
	if !strings.Contains(output, "\x1b[?1049h") {
		t.Errorf("expected alt screen enter forwarded, got %q", output)
	}

	// Footer should be drawn in the alt screen
	if !strings.Contains(output, "exectrace") {
		t.Errorf("expected footer in alt screen, got %q", output)
	}
}

func TestWriter_AltScreen_ExitRestoresScrollRegion(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	_ = w.Setup()

	_, _ = w.Write([]byte("\x1b[?1049h"))
	buf.Reset()

	_, err := w.Write([]byte("\x1b[?1049l"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.mu.Lock()
	alt := w.altScreen
	w.mu.Unlock()
	if alt {
		t.Error("expected scroll mode after alt screen exit")
	}

	output := buf.String()

	// Should leave the alternate screen
	if !strings.Contains(output, "\x1b[?1049l") {
		t.Errorf("expected alt screen exit forwarded, got %q", output)
	}

	// Should re-establish the scroll region on the main screen
	if !strings.Contains(output, "\x1b[1;23r") {
		t.Errorf("expected scroll region restored, got %q", output)
	}
}

func TestWriter_AltScreen_ContentComposited(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 10)
	_ = w.Setup()

	_, _ = w.Write([]byte("\x1b[?1049h"))
	_, _ = w.Write([]byte("editor screen"))

	// Exiting the alt screen does a final render flush, so the emulator
	// content must appear without waiting for a render tick.
	_, err := w.Write([]byte("\x1b[?1049l"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "editor screen") {
		t.Errorf("expected emulator content in final render, got %q", output)
	}
}

func TestWriter_SplitEscapeSequence(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	_ = w.Setup()
	buf.Reset()

	// Alt screen sequence split across two writes
	_, err := w.Write([]byte("\x1b[?10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The partial sequence must be buffered, not passed through
	if strings.Contains(buf.String(), "\x1b[?10") {
		t.Errorf("expected partial sequence buffered, got %q", buf.String())
	}

	_, err = w.Write([]byte("49h"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Cleanup()

	w.mu.Lock()
	alt := w.altScreen
	w.mu.Unlock()
	if !alt {
		t.Error("expected compositor mode after split sequence completes")
	}
}

func TestWriter_CompositorResize(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf, 60, 24)
	_ = w.Setup()

	_, _ = w.Write([]byte("\x1b[?1049h"))
	buf.Reset()

	if err := w.Resize(80, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Cleanup()

	output := buf.String()

	// Should clear and redraw the footer at the new bottom row
	if !strings.Contains(output, "\x1b[2J") {
		t.Errorf("expected clear screen on compositor resize, got %q", output)
	}
	if !strings.Contains(output, "\x1b[30;1H") {
		t.Errorf("expected footer at row 30, got %q", output)
	}

	// Compositor mode does not use DECSTBM
	if strings.Contains(output, "\x1b[1;29r") {
		t.Errorf("unexpected scroll region in compositor mode, got %q", output)
	}
}

func TestWriter_UpdateStatus(t *testing.T) {
	var buf bytes.Buffer
	bar := NewStatusBar("bash", "ptrace")
	bar.SetDimensions(60, 24)
	w := NewWriter(&buf, bar)
	_ = w.Setup()
	buf.Reset()

	bar.SetCounters(5, 2)
	if err := w.UpdateStatus(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should save and restore the cursor around the redraw
	if !strings.Contains(output, "\x1b[s") {
		t.Errorf("expected save cursor, got %q", output)
	}
	if !strings.Contains(output, "\x1b[u") {
		t.Errorf("expected restore cursor, got %q", output)
	}
	if !strings.Contains(output, "5 execs") {
		t.Errorf("expected updated counters, got %q", output)
	}
}
