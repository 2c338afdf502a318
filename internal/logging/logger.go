// Package logging provides categorized file-based logging for Nexus.
// Logs are written to .nexus/logs/ with one file per category per day.
// When debug mode is off the whole package is a silent no-op, so hot paths
// may call the helpers unconditionally.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category names a subsystem log stream.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, wiring
	CategoryGateway Category = "gateway" // websocket connections, broadcast
	CategoryAgent   Category = "agent"   // tool-calling loop turns
	CategoryRouter  Category = "router"  // department routing decisions
	CategoryMission Category = "mission" // mission state transitions
	CategorySignal  Category = "signal"  // signal engine evaluations
	CategoryMarket  Category = "market"  // exchange fetches, indicator builds
	CategoryTools   Category = "tools"   // tool registry and execution
	CategoryBrowser Category = "browser" // headless browser actions
	CategoryStore   Category = "store"   // sqlite operations
	CategoryKPI     Category = "kpi"     // reputation updates
	CategoryOracle  Category = "oracle"  // oracle API calls
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger bound to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	enabled   bool
	logLevel  = LevelInfo
)

// Initialize sets up the logging directory. dir is the workspace root;
// files land under dir/.nexus/logs. When debug is false this is a no-op
// and every logging call becomes silent.
func Initialize(dir string, debug bool, level string) error {
	enabled = debug
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	if !enabled {
		return nil
	}
	if dir == "" {
		dir = "."
	}
	logsDir = filepath.Join(dir, ".nexus", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	Get(CategoryBoot).Info("=== Nexus logging initialized (dir=%s level=%d) ===", logsDir, logLevel)
	return nil
}

// Get returns (or creates) the logger for a category. Disabled logging
// yields a no-op logger so callers never need to branch.
func Get(category Category) *Logger {
	if !enabled || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", logPath, err)
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

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs at error level. Always written when the file is open.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}
