// Package log provides the structured logging interface used across scigp.
//
// The Logger interface follows log/slog calling conventions (a message
// followed by alternating key/value pairs) and is backed by zerolog.
// Components obtain a logger through GetLogger or GetLoggerWithName and
// attach context with With:
//
//	logger := log.GetLoggerWithName("gaussian_process").With(
//	    log.ModelNameKey, "GaussianProcessRegressor",
//	)
//	logger.Info("fit completed",
//	    log.SamplesKey, 120,
//	    log.DurationMsKey, 35,
//	)
//
// Passing an error as the first field attaches it (with its cockroachdb
// stack trace) under the "error" key.
package log

import (
	"context"
)

// Logger is a levelled, structured logger.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	// Error logs at error level. If the first field is an error value it is
	// attached together with its stack trace.
	Error(msg string, fields ...any)
	// With returns a child logger that adds fields to every record.
	With(fields ...any) Logger
	// Enabled reports whether records at level would be written, so callers
	// can skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level mirrors slog.Level values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

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
