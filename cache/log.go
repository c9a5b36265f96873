package cache

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a string level to a Level, matching the values
// accepted by the cachemgrd CLI's --log-level flag.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (want debug, info, warn, or error)", s)
	}
}

// Logger is a small leveled wrapper over the standard logger, in the
// style of the dKVLogger this core's predecessor used to satisfy
// dragonboat's ILogger. This core has no Raft layer to satisfy, so the
// interface shrinks to what the event loop actually calls.
type Logger struct {
	name   string
	level  Level
	logger *log.Logger
}

// NewLogger returns a Logger tagged with name, writing to w at level.
func NewLogger(name string, level Level, w io.Writer) *Logger {
	return &Logger{
		name:   name,
		level:  level,
		logger: log.New(w, "", log.Ldate|log.Ltime),
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level <= LevelDebug {
		l.log("DEBUG", format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.level <= LevelInfo {
		l.log("INFO", format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.level <= LevelWarn {
		l.log("WARN", format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l.level <= LevelError {
		l.log("ERROR", format, args...)
	}
}

func (l *Logger) log(levelStr, format string, args ...any) {
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}
