package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug")

	l.With(String("component", "renderer")).Error("refresh failed",
		Error(errors.New("boom")),
		Int("cards", 3),
		Duration("took_ms", 1500*time.Millisecond),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" || entry["message"] != "refresh failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["component"] != "renderer" || entry["error"] != "boom" {
		t.Fatalf("missing fields %v", entry)
	}
	if entry["cards"].(float64) != 3 || entry["took_ms"].(float64) != 1500 {
		t.Fatalf("unexpected numeric fields %v", entry)
	}
}

func TestWriterLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn entry missing")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "discard"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
