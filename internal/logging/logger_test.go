package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestConsoleHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar)).With("component", "processor")

	logger.Info("published to instagram", "kind", "photo", "caption", "un gato")

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Errorf("missing level in %q", line)
	}
	if !strings.Contains(line, "[processor]") {
		t.Errorf("missing component in %q", line)
	}
	if !strings.Contains(line, "published to instagram") {
		t.Errorf("missing message in %q", line)
	}
	if !strings.Contains(line, "kind=photo") {
		t.Errorf("missing plain attr in %q", line)
	}
	if !strings.Contains(line, `caption="un gato"`) {
		t.Errorf("attr with spaces not quoted in %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("line not newline terminated: %q", line)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info record leaked past warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar)).WithGroup("job")

	logger.Info("started", "id", "42")

	if !strings.Contains(buf.String(), "job.id=42") {
		t.Errorf("group prefix missing in %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{Level: "info", Format: "json", LogDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	// The file is created eagerly even before content assertions matter.
	if _, err := New(Options{Level: "info", Format: "json", LogDir: dir}); err != nil {
		t.Fatalf("New on existing dir: %v", err)
	}
}
