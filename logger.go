// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type LogType string

const (
	LogTypeServer     LogType = "server"     // for server events
	LogTypeClient     LogType = "client"     // for socket lifecycle events
	LogTypeConnection LogType = "connection" // for connection events
	LogTypeEvent      LogType = "event"      // for named events received from clients
	LogTypeMessage    LogType = "message"    // for raw frames sent and received
	LogTypeError      LogType = "error"      // for internal errors and connection errors
	LogTypeRateLimit  LogType = "ratelimit"  // for rate limit events
	LogTypeOther      LogType = "other"      // generic
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

type Logger interface {
	Log(logType LogType, level LogLevel, msg string, args ...interface{})
}

// LoggerConfig pairs a Logger with the maximum level emitted for each LogType.
// Types missing from Level are not logged.
type LoggerConfig struct {
	Logger Logger
	Level  map[LogType]LogLevel
}

func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger: NewDefaultLogger(os.Stdout),
		Level: map[LogType]LogLevel{
			LogTypeServer:     LogLevelInfo,
			LogTypeClient:     LogLevelInfo,
			LogTypeConnection: LogLevelInfo,
			LogTypeEvent:      LogLevelInfo,
			LogTypeError:      LogLevelError,
			LogTypeRateLimit:  LogLevelWarn,
		},
	}
}

// Enabled reports whether a message of the given type and level would be emitted.
func (c *LoggerConfig) Enabled(logType LogType, level LogLevel) bool {
	if c == nil || c.Logger == nil || level == LogLevelNone {
		return false
	}
	lvl, ok := c.Level[logType]
	if !ok {
		return false
	}
	return level <= lvl
}

func (c *LoggerConfig) Log(logType LogType, level LogLevel, msg string, args ...interface{}) {
	if c.Enabled(logType, level) {
		c.Logger.Log(logType, level, msg, args...)
	}
}

// DefaultLogger writes human readable lines through zerolog's console writer.
type DefaultLogger struct {
	zl zerolog.Logger
}

func NewDefaultLogger(w io.Writer) *DefaultLogger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return &DefaultLogger{
		zl: zerolog.New(out).With().Timestamp().Logger(),
	}
}

// NewJSONLogger writes one JSON object per line, for log shippers.
func NewJSONLogger(w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func (l *DefaultLogger) Log(logType LogType, level LogLevel, msg string, args ...interface{}) {
	l.zl.WithLevel(zerologLevel(level)).
		Str("type", string(logType)).
		Msgf(msg, args...)
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.NoLevel
	}
}

type NullLogger struct{}

func (l *NullLogger) Log(logType LogType, level LogLevel, msg string, args ...interface{}) {}
