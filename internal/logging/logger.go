// Package logging provides the sync core's structured JSON logging, with
// a convenience for folding an apperrors.AppError's taxonomy code into the
// logged entry so every StorageError/RemoteTransientError/
// MalformedRemoteDocument/PolicyError site is filterable without parsing
// the message text.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mohamed352/edusync/internal/apperrors"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Logger provides structured JSON logging.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel LogLevel
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
)

// Init initializes the global logger.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = &Logger{
			out:      out,
			minLevel: minLevel,
		}
	})
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string  `json:"timestamp"`
	Level    string  `json:"level"`
	Message  string  `json:"message"`
	Error    string  `json:"error,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// log writes a log entry at the specified level.
func (l *Logger) log(level LogLevel, message string, err error, context map[string]interface{}) {
	// Check minimum level
	if !l.shouldLog(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:    string(level),
		Message:  message,
		Context:  context,
	}

	if err != nil {
		entry.Error = err.Error()
	}

	// Marshal to JSON
	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		log.Printf("Failed to marshal log entry: %v\n", jsonErr)
		return
	}

	// Write output
	fmt.Fprintln(l.out, string(data))
}

// shouldLog checks if a level should be logged.
func (l *Logger) shouldLog(level LogLevel) bool {
	levels := map[LogLevel]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}

	return levels[level] >= levels[l.minLevel]
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	ctx := l.getContext(context...)
	l.log(LevelDebug, message, nil, ctx)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	ctx := l.getContext(context...)
	l.log(LevelInfo, message, nil, ctx)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	ctx := l.getContext(context...)
	l.log(LevelWarn, message, nil, ctx)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	ctx := l.getContext(context...)
	l.log(LevelError, message, err, ctx)
}

// ErrorWithCode logs an error message tagged with an application error
// code, folded into the context under "error_code" so downstream consumers
// can filter on it without parsing the message text.
func (l *Logger) ErrorWithCode(message string, code string, err error, context ...map[string]interface{}) {
	l.logWithCode(LevelError, message, code, err, context...)
}

// WarnWithCode is ErrorWithCode's Warn-level counterpart, for the taxonomy
// codes this core never treats as fatal (MalformedRemoteDocument, Policy).
func (l *Logger) WarnWithCode(message string, code string, err error, context ...map[string]interface{}) {
	l.logWithCode(LevelWarn, message, code, err, context...)
}

func (l *Logger) logWithCode(level LogLevel, message string, code string, err error, context ...map[string]interface{}) {
	ctx := l.getContext(context...)
	if ctx == nil {
		ctx = make(map[string]interface{}, 1)
	}
	ctx["error_code"] = code
	l.log(level, message, err, ctx)
}

// LogAppError logs an *apperrors.AppError, folding its Code into the entry
// the same way ErrorWithCode/WarnWithCode do. The level follows the
// taxonomy itself rather than the call site: StorageError and
// RemoteTransientError log at Error, while MalformedRemoteDocument and
// PolicyError log at Warn, matching the fatal/non-fatal split every caller
// would otherwise have to encode by hand.
func (l *Logger) LogAppError(message string, err *apperrors.AppError, context ...map[string]interface{}) {
	switch err.Code {
	case apperrors.ErrMalformedDocument, apperrors.ErrPolicy:
		l.WarnWithCode(message, string(err.Code), err, context...)
	default:
		l.ErrorWithCode(message, string(err.Code), err, context...)
	}
}

// getContext merges multiple context maps.
func (l *Logger) getContext(context ...map[string]interface{}) map[string]interface{} {
	if len(context) == 0 {
		return nil
	}
	if len(context) == 1 {
		return context[0]
	}
	// Merge all contexts
	merged := make(map[string]interface{})
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}

func ErrorWithCode(message string, code string, err error, context ...map[string]interface{}) {
	Get().ErrorWithCode(message, code, err, context...)
}

func WarnWithCode(message string, code string, err error, context ...map[string]interface{}) {
	Get().WarnWithCode(message, code, err, context...)
}

func LogAppError(message string, err *apperrors.AppError, context ...map[string]interface{}) {
	Get().LogAppError(message, err, context...)
}
