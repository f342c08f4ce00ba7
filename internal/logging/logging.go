// Package logging provides global logging functions for aiorch.
// Use dot import to access L_info, L_error, etc. directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Log levels
const (
	LevelFatal = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	logger *log.Logger
	mu     sync.Mutex
	output io.WriteCloser
)

// Config holds logging configuration
type Config struct {
	Level      int
	TimeFormat string
	ShowCaller bool
	// File redirects output to a log file instead of stderr. Chat output
	// goes to stdout, so a file keeps diagnostics out of the conversation.
	File string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelWarn,
		TimeFormat: "15:04:05",
		ShowCaller: false,
	}
}

// Init (re)initializes the global logger. Falls back to stderr when the
// log file cannot be opened.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = os.Stderr
	var openErr error
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			openErr = fmt.Errorf("open log file %s: %w", cfg.File, err)
		} else {
			w = f
		}
	}
	if output != nil {
		output.Close()
		output = nil
	}
	if f, ok := w.(*os.File); ok && f != os.Stderr {
		output = f
	}

	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.ShowCaller,
		CallerOffset:    2, // Skip two frames (logMsg -> L_* -> caller)
	})
	logger.SetLevel(toCharm(cfg.Level))

	return openErr
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if output != nil {
		output.Close()
		output = nil
		logger = nil
	}
}

// ParseLevel maps a level name to a Level constant.
// Unknown names return LevelInfo and false.
func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "fatal":
		return LevelFatal, true
	}
	return LevelInfo, false
}

func toCharm(level int) log.Level {
	switch level {
	case LevelTrace, LevelDebug:
		return log.DebugLevel
	case LevelInfo:
		return log.InfoLevel
	case LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

// ensureInit ensures logger is initialized with defaults if not already
func ensureInit() *log.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		_ = Init(nil)
		mu.Lock()
		l = logger
		mu.Unlock()
	}
	return l
}

// logMsg logs msg with args as key/value pairs. Printf-style messages go
// through the L_*f helpers instead.
func logMsg(level log.Level, msg string, keyvals ...interface{}) {
	l := ensureInit()

	switch level {
	case log.DebugLevel:
		l.Debug(msg, keyvals...)
	case log.InfoLevel:
		l.Info(msg, keyvals...)
	case log.WarnLevel:
		l.Warn(msg, keyvals...)
	case log.ErrorLevel:
		l.Error(msg, keyvals...)
	case log.FatalLevel:
		l.Fatal(msg, keyvals...)
	}
}

// L_trace logs at trace level (mapped to debug)
func L_trace(msg string, keyvals ...interface{}) {
	logMsg(log.DebugLevel, msg, keyvals...)
}

// L_debug logs at debug level
func L_debug(msg string, keyvals ...interface{}) {
	logMsg(log.DebugLevel, msg, keyvals...)
}

// L_info logs at info level
func L_info(msg string, keyvals ...interface{}) {
	logMsg(log.InfoLevel, msg, keyvals...)
}

// L_warn logs at warn level
func L_warn(msg string, keyvals ...interface{}) {
	logMsg(log.WarnLevel, msg, keyvals...)
}

// L_error logs at error level
func L_error(msg string, keyvals ...interface{}) {
	logMsg(log.ErrorLevel, msg, keyvals...)
}

// L_fatal logs at fatal level and exits
func L_fatal(msg string, keyvals ...interface{}) {
	logMsg(log.FatalLevel, msg, keyvals...)
}

// The f variants format their message with fmt.Sprintf and carry no fields.
func L_tracef(format string, args ...interface{}) {
	logMsg(log.DebugLevel, fmt.Sprintf(format, args...))
}

func L_debugf(format string, args ...interface{}) {
	logMsg(log.DebugLevel, fmt.Sprintf(format, args...))
}

func L_infof(format string, args ...interface{}) {
	logMsg(log.InfoLevel, fmt.Sprintf(format, args...))
}

func L_warnf(format string, args ...interface{}) {
	logMsg(log.WarnLevel, fmt.Sprintf(format, args...))
}

func L_errorf(format string, args ...interface{}) {
	logMsg(log.ErrorLevel, fmt.Sprintf(format, args...))
}

func L_fatalf(format string, args ...interface{}) {
	logMsg(log.FatalLevel, fmt.Sprintf(format, args...))
}

// SetLevel changes the log level at runtime
func SetLevel(level int) {
	ensureInit().SetLevel(toCharm(level))
}

// L_elapsed logs at debug level with elapsed time since start
func L_elapsed(start time.Time, msg string, keyvals ...interface{}) {
	keyvals = append(keyvals, "elapsed", time.Since(start).Round(time.Millisecond).String())
	logMsg(log.DebugLevel, msg, keyvals...)
}
