package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, expected := range testCases {
		if got := ParseLevel(input); got != expected {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, expected)
		}
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, err := NewLogger("warn", path)
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}

	logger.Info("hidden entry")
	logger.Warn("visible entry")
	_ = logger.Sync()

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(contents), "visible entry") {
		t.Fatalf("expected warn entry in log file, got %q", contents)
	}
	if strings.Contains(string(contents), "hidden entry") {
		t.Fatalf("expected info entry to be filtered")
	}
}
