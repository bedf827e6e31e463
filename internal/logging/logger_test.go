package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func resetLogging() {
	mutex.Lock()
	defer mutex.Unlock()
	config = Config{Level: "info", Format: "text"}
	initialized = false
	moduleLevels = make(map[string]*slog.LevelVar)
	loggers = make(map[string]*slog.Logger)
	logBuffer = nil
	logCallback = nil
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"decoder": "debug",
			"mirror":  "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"decoder", true, true, true},
		{"mirror", false, false, true},
		{"session", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()
			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging()

	before := GetLogger("viewport").Handler()
	if before.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"viewport": "debug"}})

	if !before.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("early logger did not pick up the module level")
	}
	if !GetLogger("viewport").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("rebuilt logger does not have debug enabled")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "info"})

	if SetModuleLevel("api", "verbose") {
		t.Error("SetModuleLevel accepted an unknown level")
	}
	if !SetModuleLevel("api", "error") {
		t.Fatal("SetModuleLevel rejected a valid level")
	}
	if GetLogger("api").Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn still enabled after raising level to error")
	}
}

func TestHistoryCapturesEntries(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "debug"})

	var seen []LogEntry
	SetLogCallback(func(e LogEntry) { seen = append(seen, e) })

	GetLogger("transform").Warn("Converter rebuilt", "width", 640, "error", errors.New("boom"))

	entries := GetBuffer().Tail(0)
	if len(entries) == 0 {
		t.Fatal("history buffer is empty")
	}
	last := entries[len(entries)-1]
	if last.Module != "transform" || last.Level != "warn" || last.Message != "Converter rebuilt" {
		t.Errorf("entry = %+v", last)
	}
	if last.Attributes["width"] != int64(640) {
		t.Errorf("width attribute = %v (%T)", last.Attributes["width"], last.Attributes["width"])
	}
	if last.Attributes["error"] != "boom" {
		t.Errorf("error attribute = %v", last.Attributes["error"])
	}
	if len(seen) != 1 {
		t.Errorf("callback saw %d entries, want 1", len(seen))
	}
}

func TestHistoryHandlerGroups(t *testing.T) {
	resetLogging()
	Initialize(Config{Level: "debug"})

	logger := slog.New(NewHistoryHandler(slog.LevelDebug)).WithGroup("view").With("zoom", 3)
	logger.Info("changed", slog.Group("grid", "x", 10))

	last := GetBuffer().Tail(1)[0]
	if last.Attributes["view.zoom"] != int64(3) {
		t.Errorf("view.zoom = %v", last.Attributes["view.zoom"])
	}
	if last.Attributes["view.grid.x"] != int64(10) {
		t.Errorf("view.grid.x = %v", last.Attributes["view.grid.x"])
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debug, info)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("info message")

	out := buf.String()
	if n := strings.Count(out, "debug only message"); n != 1 {
		t.Errorf("debug message written %d times, want 1", n)
	}
	if n := strings.Count(out, "info message"); n != 2 {
		t.Errorf("info message written %d times, want 2", n)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRingBufferTail(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rb.Len())
	}
	got := rb.Tail(0)
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i].Message != want[i] {
			t.Errorf("Tail(0)[%d] = %q, want %q", i, got[i].Message, want[i])
		}
	}
	if tail := rb.Tail(2); tail[0].Message != "d" || tail[1].Message != "e" {
		t.Errorf("Tail(2) = %v", tail)
	}

	partial := NewRingBuffer(5)
	partial.Write(LogEntry{Message: "x"})
	partial.Write(LogEntry{Message: "y"})
	if tail := partial.Tail(1); len(tail) != 1 || tail[0].Message != "y" {
		t.Errorf("partial Tail(1) = %v", tail)
	}
}
