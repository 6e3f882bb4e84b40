// jsonlog.go - Structured logging with JSON or plain text output.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Logger provides structured logging
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	minLevel   LogLevel
	enableJSON bool
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Level   LogLevel       `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
	Error   string         `json:"error,omitempty"`
	Caller  string         `json:"caller,omitempty"`
}

// DefaultLogger is used by the package-level helpers. Replace it with
// SetDefaultLogger once configuration is loaded.
var DefaultLogger = NewLogger(os.Stdout, LogLevelInfo, false)

// NewLogger builds a logger writing to out.
func NewLogger(out io.Writer, level LogLevel, enableJSON bool) *Logger {
	return &Logger{
		output:     out,
		minLevel:   level,
		enableJSON: enableJSON,
	}
}

// NewLoggerFromConfig builds a stdout logger from the log section of the config.
func NewLoggerFromConfig(cfg LogConfig) *Logger {
	return NewLogger(os.Stdout, ParseLogLevel(cfg.Level), strings.EqualFold(cfg.Format, "json"))
}

// SetDefaultLogger swaps the logger used by Debug/Info/Warn/Error.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		DefaultLogger = l
	}
}

// ParseLogLevel maps a config string to a level, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn:
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// getCaller returns file:line of the caller, file name only.
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]any, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  getCaller(4),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enableJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	// Plain text for development; keys sorted so lines diff cleanly.
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(&sb, " error=%s", entry.Error)
	}
	fmt.Fprintln(l.output, sb.String())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(LogLevelDebug, msg, fields, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(LogLevelInfo, msg, fields, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(LogLevelWarn, msg, fields, nil)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LogLevelError, msg, fields, err)
}

// Global logging functions

func Debug(msg string, fields map[string]any) {
	DefaultLogger.Debug(msg, fields)
}

func Info(msg string, fields map[string]any) {
	DefaultLogger.Info(msg, fields)
}

func Warn(msg string, fields map[string]any) {
	DefaultLogger.Warn(msg, fields)
}

func Error(msg string, fields map[string]any, err error) {
	DefaultLogger.Error(msg, fields, err)
}
