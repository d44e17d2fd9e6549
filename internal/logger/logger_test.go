package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dbsmedya/waitforgraph/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string // String representation of zapcore.Level
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"}, // empty defaults to info
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"}, // unknown defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level := parseLevel(tt.input)
			if level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level.String(), tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tmpLog := filepath.Join(t.TempDir(), "test-log.json")

	tests := []struct {
		name string
		cfg  *config.LoggingConfig
	}{
		{
			name: "json format info level",
			cfg:  &config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		},
		{
			name: "text format debug level",
			cfg:  &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
		},
		{
			name: "file output",
			cfg:  &config.LoggingConfig{Level: "warn", Format: "json", Output: tmpLog},
		},
		{
			name: "stdout output",
			cfg:  &config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger without error")
			}
			_ = logger.Sync()
		})
	}
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	if logger == nil {
		t.Fatal("NewDefault() returned nil")
	}

	// Should be able to log without panic
	logger.Info("test message")
	_ = logger.Sync()
}

func TestContextLoggers(t *testing.T) {
	logger := NewDefault()

	sessionLogger := logger.WithSession(42)
	if sessionLogger == nil {
		t.Fatal("WithSession() returned nil")
	}
	if sessionLogger == logger {
		t.Error("WithSession() should return a new logger instance")
	}

	serverLogger := logger.WithServer("127.0.0.1", 5432)
	if serverLogger == nil {
		t.Fatal("WithServer() returned nil")
	}

	fieldLogger := logger.WithFields(map[string]interface{}{"edges": 3})
	if fieldLogger == nil {
		t.Fatal("WithFields() returned nil")
	}

	// Chained context must not panic
	logger.WithServer("mdw", 5432).WithSession(7).Debug("chained")
	_ = logger.Sync()
}

func TestBuildEncoder(t *testing.T) {
	for _, format := range []string{"json", "text", "unknown"} {
		if buildEncoder(format) == nil {
			t.Errorf("buildEncoder(%q) returned nil", format)
		}
	}
}

func TestBuildWriters(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		if buildWriters(output) == nil {
			t.Errorf("buildWriters(%q) returned nil", output)
		}
	}

	fileWriter := buildWriters(filepath.Join(t.TempDir(), "out.log"))
	if fileWriter == nil {
		t.Error("buildWriters(file) returned nil")
	}

	// Unwritable path falls back to stderr
	if buildWriters(filepath.Join(t.TempDir(), "missing", "dir", "out.log")) == nil {
		t.Error("buildWriters(bad path) returned nil")
	}
}

func TestLoggingOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "logger-test-*.json")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	_ = tmpFile.Close()

	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: tmpFile.Name(),
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("snapshot fetched")
	logger.Warn("skipping malformed edge line")
	logger.WithSession(1234).Info("message with session context")
	logger.Debug("debug is filtered at info level")

	_ = logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	for _, want := range []string{"snapshot fetched", "skipping malformed edge line", `"session":1234`} {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Log file should contain %q", want)
		}
	}
	if strings.Contains(contentStr, "debug is filtered") {
		t.Error("Debug message should not be written at info level")
	}
}
