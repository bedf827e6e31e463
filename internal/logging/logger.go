package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Logger is the subset of *slog.Logger used by components that accept an
// injected logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex        sync.RWMutex
	config       = Config{Level: "info", Format: "text"}
	initialized  bool
	moduleLevels = make(map[string]*slog.LevelVar)
	loggers      = make(map[string]*slog.Logger)
	logBuffer    *RingBuffer
	logCallback  LogCallback
)

// Initialize applies the configuration to the default logger and to every
// module logger, including those created earlier.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	config = cfg
	initialized = true
	if logBuffer == nil {
		logBuffer = NewRingBuffer(historySize)
	}

	for module, levelVar := range moduleLevels {
		levelVar.Set(levelFor(module))
		loggers[module] = slog.New(newHandler(cfg.Format, levelVar)).With("module", module)
	}

	global := &slog.LevelVar{}
	global.Set(levelFor(""))
	slog.SetDefault(slog.New(newHandler(cfg.Format, global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := loggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(levelFor(module))
	logger = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	loggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// SetModuleLevel changes the level of one module at runtime.
func SetModuleLevel(module, level string) bool {
	parsed, ok := ParseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	moduleLevels[module].Set(parsed)
	return true
}

// GetBuffer returns the history buffer, or nil before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers a callback for each stored entry.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// levelFor returns the configured level for module. Callers hold mutex.
func levelFor(module string) slog.Level {
	level := slog.LevelInfo
	if !initialized {
		return level
	}
	if parsed, ok := ParseLevel(config.Level); ok {
		level = parsed
	}
	if override, exists := config.Modules[module]; exists && module != "" {
		if parsed, ok := ParseLevel(override); ok {
			level = parsed
		}
	}
	return level
}

// newHandler builds the handler chain: stdout (when attached), journal (when
// available) and history.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if stdoutAttached() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewHistoryHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached reports whether stdout goes to a terminal, pipe, socket or
// file rather than a device such as /dev/null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 ||
		mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
