package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camerasync/internal/config"
	"camerasync/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("archive pass complete", logging.Int("copied", 3))

	content, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "archive pass complete") || !strings.Contains(text, "copied=3") {
		t.Fatalf("unexpected log file content %q", text)
	}
	if strings.Contains(text, "\x1b[") {
		t.Fatalf("expected no colour codes in log file, got %q", text)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "archiver").Warn("copy failed", logging.String("file", "IMG 1.CR2"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "WARN archiver: copy failed") {
		t.Fatalf("expected component prefix, got %q", text)
	}
	if !strings.Contains(text, `file="IMG 1.CR2"`) {
		t.Fatalf("expected quoted value, got %q", text)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["msg"] != "json message" || record["k"] != "v" || record["level"] != "info" {
		t.Fatalf("unexpected json record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts field in %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") || !strings.Contains(string(content), "shown") {
		t.Fatalf("expected info level filtering, got %q", content)
	}
}

type kindError struct{}

func (kindError) Error() string     { return "tool exited 1" }
func (kindError) ErrorKind() string { return "external_tool" }

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := context.Background()
	ctx = logging.WithRunID(ctx, "run-1")
	ctx = logging.WithWorker(ctx, 2)
	ctx = logging.WithGroup(ctx, "img_0100")
	ctx = logging.WithStage(ctx, "align")

	logging.WithContext(ctx, logger).Error("stage failed", logging.ErrorAttrs(kindError{})...)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]any{
		logging.FieldRunID:     "run-1",
		logging.FieldWorker:    float64(2),
		logging.FieldGroup:     "img_0100",
		logging.FieldStage:     "align",
		logging.FieldErrorKind: "external_tool",
		"error":                "tool exited 1",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("field %s = %v, want %v", key, record[key], value)
		}
	}
}

func TestErrorAttrsWithoutKind(t *testing.T) {
	args := logging.ErrorAttrs(errors.New("plain"))
	if len(args) != 1 {
		t.Fatalf("expected only the error attribute, got %d", len(args))
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
}
