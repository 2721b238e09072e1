// Package logging provides category file logging for the interactive client.
// The TUI owns stdout, so diagnostics go to files under ~/.docchat/logs/,
// one file per category per day. Logging is off unless debug_logging is set
// in the config file; every call is a silent no-op in that case.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category names a log stream.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, restore, shutdown
	CategoryAuth    Category = "auth"    // login/logout/token lifecycle
	CategorySession Category = "session" // session switching, directory refresh
	CategorySync    Category = "sync"    // coordinator state machine
	CategoryAPI     Category = "api"     // backend calls
	CategoryUpload  Category = "upload"  // document upload and binding
	CategorySpeech  Category = "speech"  // speech capture events
)

// Logger writes to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu      sync.Mutex
	loggers = map[Category]*Logger{}
	logsDir string
	enabled bool
)

// Initialize points the logger at the client's data directory and reads the
// debug flag from config.json there. Call once at startup; before that (and
// when debug is off) all logging is a no-op.
func Initialize(dataDir string) error {
	mu.Lock()
	defer mu.Unlock()

	logsDir = filepath.Join(dataDir, "logs")
	enabled = readDebugFlag(filepath.Join(dataDir, "config.json"))
	if !enabled {
		return nil
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// readDebugFlag peeks at config.json without importing internal/config
// (which logs through this package).
func readDebugFlag(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var cfg struct {
		DebugLogging bool `json:"debug_logging"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false
	}
	return cfg.DebugLogging
}

// Get returns the logger for a category, creating its file on first use.
// Returns a no-op logger when logging is disabled.
func Get(category Category) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || logsDir == "" {
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		return l
	}

	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	file, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", name, err)
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

// Error logs an error.
func (l *Logger) Error(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// CloseAll closes every open log file. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = map[Category]*Logger{}
}

// Convenience wrappers, no-ops when logging is disabled.

func Boot(format string, args ...any)        { Get(CategoryBoot).Info(format, args...) }
func Auth(format string, args ...any)        { Get(CategoryAuth).Info(format, args...) }
func AuthWarn(format string, args ...any)    { Get(CategoryAuth).Warn(format, args...) }
func Session(format string, args ...any)     { Get(CategorySession).Info(format, args...) }
func SessionWarn(format string, args ...any) { Get(CategorySession).Warn(format, args...) }
func Sync(format string, args ...any)        { Get(CategorySync).Info(format, args...) }
func SyncWarn(format string, args ...any)    { Get(CategorySync).Warn(format, args...) }
func API(format string, args ...any)         { Get(CategoryAPI).Info(format, args...) }
func Upload(format string, args ...any)      { Get(CategoryUpload).Info(format, args...) }
func Speech(format string, args ...any)      { Get(CategorySpeech).Info(format, args...) }
