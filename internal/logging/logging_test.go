package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("Discard() returned nil")
	}

	// Should not panic when logging.
	logger.Info("test message")
	logger.With("component", "x").Debug("debug message")
}

func TestDefault(t *testing.T) {
	t.Run("nil returns discard", func(t *testing.T) {
		logger := Default(nil)
		if logger == nil {
			t.Fatal("Default(nil) returned nil")
		}
		if logger.Enabled(context.Background(), slog.LevelError) {
			t.Error("Default(nil) should return a discard logger")
		}
	})

	t.Run("non-nil returns same logger", func(t *testing.T) {
		var buf bytes.Buffer
		original := slog.New(slog.NewTextHandler(&buf, nil))
		if Default(original) != original {
			t.Error("Default should return the same logger when non-nil")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Errorf("parse %q: expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, "json", slog.LevelInfo)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	logger := slog.New(h)
	logger.Debug("hidden")
	logger.Info("shown", "component", "vault")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["msg"] != "shown" || entry["component"] != "vault" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewHandlerText(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, "", slog.LevelDebug)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	slog.New(h).Debug("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestNewHandlerUnknownFormat(t *testing.T) {
	if _, err := NewHandler(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
