package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("rendered", "type", "mermaid") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("cache hit", "tier", "file") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("cache hit", "tier", "file") }, true},
		{"warn at info", log.InfoLevel, func(l *log.Logger) { l.Warn("kept failed block") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote output = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("Processed 3 chapters")

	out := buf.String()
	if !strings.Contains(out, "Processed 3 chapters (") {
		t.Errorf("progress output = %q, want message with elapsed time", out)
	}
}

func TestContextLogger(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("loggerFromContext without a logger should fall back to log.Default()")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel).With("run", "abcd1234")
	got := loggerFromContext(withLogger(context.Background(), custom))
	if got != custom {
		t.Fatal("loggerFromContext should return the attached logger")
	}
	got.Info("processed chapter")
	if !strings.Contains(buf.String(), "run=abcd1234") {
		t.Errorf("attached fields missing from %q", buf.String())
	}
}

func TestNewRunID(t *testing.T) {
	a, b := newRunID(), newRunID()
	if len(a) != 8 {
		t.Errorf("newRunID() = %q, want 8 characters", a)
	}
	if a == b {
		t.Errorf("run ids should differ, both %q", a)
	}
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "diagrams.log")
	f := newLogFile(path)
	logger := newLogger(f, log.InfoLevel)
	logger.Info("written to file", "run", "abc")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("written to file")) {
		t.Errorf("log file content = %q", data)
	}
}
