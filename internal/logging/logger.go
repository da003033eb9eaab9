// Package logging provides the structured-logging interface used to report
// journal recovery, reclamation, and background checkpoint outcomes. Every
// fanoutq.Queue binds a Logger to its queue name via With at Open time, so
// every line the recovery scan, reclamation, or background checkpoint emits
// already carries which queue it's about, without call sites repeating that
// context on every call.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface used throughout this module for logging.
// Callers can implement it to integrate with their own logging system.
type Logger interface {
	// With returns a logger that prepends fields to every field list passed
	// to its Debug/Info/Warn/Error calls, for binding context (a queue or
	// reader name) once rather than at every call site.
	With(fields ...Field) Logger

	// Debug logs a debug message
	Debug(msg string, fields ...Field)

	// Info logs an informational message
	Info(msg string, fields ...Field)

	// Warn logs a warning message
	Warn(msg string, fields ...Field)

	// Error logs an error message
	Error(msg string, fields ...Field)
}

// Field represents a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// F is a convenience function to create a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NoopLogger is a logger that does nothing.
type NoopLogger struct{}

// With implements Logger.
func (NoopLogger) With(...Field) Logger { return NoopLogger{} }

// Debug implements Logger.
func (NoopLogger) Debug(string, ...Field) {}

// Info implements Logger.
func (NoopLogger) Info(string, ...Field) {}

// Warn implements Logger.
func (NoopLogger) Warn(string, ...Field) {}

// Error implements Logger.
func (NoopLogger) Error(string, ...Field) {}

// DefaultLogger writes level-filtered, field-annotated lines to stderr.
// bound holds fields attached via With; every logged line carries them
// ahead of whatever fields the call itself supplies.
type DefaultLogger struct {
	minLevel Level
	logger   *log.Logger
	bound    []Field
}

// NewDefaultLogger creates a new default logger with the specified minimum level.
func NewDefaultLogger(minLevel Level) *DefaultLogger {
	return &DefaultLogger{
		minLevel: minLevel,
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// With returns a logger sharing this one's output and level but with fields
// appended to its bound set. The receiver is left unmodified.
func (l *DefaultLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &DefaultLogger{minLevel: l.minLevel, logger: l.logger, bound: bound}
}

// Debug implements Logger.
func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	if l.minLevel <= LevelDebug {
		l.log(LevelDebug, msg, fields...)
	}
}

// Info implements Logger.
func (l *DefaultLogger) Info(msg string, fields ...Field) {
	if l.minLevel <= LevelInfo {
		l.log(LevelInfo, msg, fields...)
	}
}

// Warn implements Logger.
func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	if l.minLevel <= LevelWarn {
		l.log(LevelWarn, msg, fields...)
	}
}

// Error implements Logger.
func (l *DefaultLogger) Error(msg string, fields ...Field) {
	if l.minLevel <= LevelError {
		l.log(LevelError, msg, fields...)
	}
}

func (l *DefaultLogger) log(level Level, msg string, fields ...Field) {
	if len(l.bound) == 0 && len(fields) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	var b strings.Builder
	writeFields(&b, l.bound)
	writeFields(&b, fields)

	l.logger.Printf("[%s] %s %s", level, msg, b.String())
}

func writeFields(b *strings.Builder, fields []Field) {
	for _, f := range fields {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		switch v := f.Value.(type) {
		case string:
			b.WriteString(v)
		default:
			fmt.Fprint(b, v)
		}
	}
}
