package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:      LevelDebug,
		Output:     &buf,
		JSON:       true,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}

	logger := New(cfg)
	if logger == nil {
		t.Fatal("New logger should not be nil")
	}

	t.Run("Levels", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug msg")
		if !strings.Contains(buf.String(), "debug msg") {
			t.Error("debug logging failed")
		}

		buf.Reset()
		logger.Info("info msg")
		if !strings.Contains(buf.String(), "info msg") {
			t.Error("info logging failed")
		}

		buf.Reset()
		logger.Warn("warn msg")
		if !strings.Contains(buf.String(), "warn msg") {
			t.Error("warn logging failed")
		}

		buf.Reset()
		logger.Error("error msg")
		if !strings.Contains(buf.String(), "error msg") {
			t.Error("error logging failed")
		}
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		if logger.GetLevel() != LevelError {
			t.Error("SetLevel failed")
		}

		buf.Reset()
		logger.Info("should not appear")
		if buf.Len() > 0 {
			t.Error("info logged despite error level")
		}

		logger.SetLevel(LevelDebug)
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		child := logger.WithComponent("eval")
		child.Info("component msg")
		if !strings.Contains(buf.String(), "eval") {
			t.Error("component field missing")
		}
	})
}

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, JSON: false})

	logger.WithComponent("merge").Info("resolved", "path", "services.proxy.enable")

	out := buf.String()
	if !strings.Contains(out, "[info]") {
		t.Errorf("missing level tag: %q", out)
	}
	if !strings.Contains(out, "merge:") {
		t.Errorf("component not promoted to header: %q", out)
	}
	if !strings.Contains(out, "path=services.proxy.enable") {
		t.Errorf("missing key=value attr: %q", out)
	}
}

func TestConsoleHandler_QuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, JSON: false})

	logger.Info("msg", "detail", "two words")

	if !strings.Contains(buf.String(), `detail="two words"`) {
		t.Errorf("spaced value not quoted: %q", buf.String())
	}
}
