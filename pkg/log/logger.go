package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewZerologLogger(os.Stderr, LevelWarn)
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorStackMarshaler = extractStacktrace
}

// GetLogger returns the process-wide logger. Until SetupLogger or SetLogger
// is called it writes warnings and errors to stderr.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// SetupLogger installs a JSON zerolog logger on stderr at the given level
// ("debug", "info", "warn", "error") and routes errors.Warn through it.
func SetupLogger(level string) error {
	return SetupLoggerWithWriter(os.Stderr, level)
}

// SetupLoggerWithWriter is SetupLogger with an explicit destination.
func SetupLoggerWithWriter(w io.Writer, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l := NewZerologLogger(w, lvl)
	SetLogger(l)
	scigperrors.SetZerologWarnFunc(func(warning error) {
		l.Warn(warning.Error(), WarningKey, warning)
	})
	return nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, scigperrors.NewConfigurationError("log", "level", "unknown log level", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger writes JSON records with timestamps to w.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...any)  { emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...any)  { emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

// With implements Logger.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.Str(key, err.Error())
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &ZerologLogger{zl: ctx.Logger()}
}

// Enabled implements Logger.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			attachError(ev, ErrorKey, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			attachError(ev, key, v)
		case string:
			ev.Str(key, v)
		case int:
			ev.Int(key, v)
		case int64:
			ev.Int64(key, v)
		case float64:
			ev.Float64(key, v)
		case bool:
			ev.Bool(key, v)
		case time.Duration:
			ev.Dur(key, v)
		default:
			ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

// attachError writes the message, the stack trace and, when the error
// chain carries one, the structured detail object of a scigp error type.
func attachError(ev *zerolog.Event, key string, err error) {
	ev.Str(key, err.Error())
	if stack := extractStacktrace(err); stack != nil {
		ev.Interface(StacktraceKey, stack)
	}
	var detail zerolog.LogObjectMarshaler
	if errors.As(err, &detail) {
		ev.Object(key+".detail", detail)
	}
}

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack for WithStack wrappers.
func extractStacktrace(err error) interface{} {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 && safeDetails[0] != "" {
		return safeDetails[0]
	}
	return nil
}
