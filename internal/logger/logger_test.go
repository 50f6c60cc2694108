package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, slog.LevelDebug))

	log.Info("Dialing peer", "peer", "12D3KooW")

	out := buf.String()
	if !strings.Contains(out, "Dialing peer") {
		t.Errorf("Expected message in output, got %q", out)
	}
	if !strings.Contains(out, "peer") || !strings.Contains(out, "12D3KooW") {
		t.Errorf("Expected attr in output, got %q", out)
	}
}

func TestPrettyHandlerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, slog.LevelWarn))

	log.Info("should be dropped")
	log.Debug("should be dropped too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output below WARN, got %q", buf.String())
	}

	log.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("Expected WARN record, got %q", buf.String())
	}
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil)).With("component", "eventloop")

	log.Info("Started")

	if !strings.Contains(buf.String(), "eventloop") {
		t.Errorf("Expected bound attr in output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	if err != nil {
		t.Fatalf("ParseLevel failed: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("Expected DEBUG, got %v", level)
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
