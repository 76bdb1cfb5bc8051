package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type ctxKey struct{}

type (
	LogLevel string

	// Logger defines the interface for structured logging.
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		With(keyvals ...any) Logger
	}

	// loggerImpl implements Logger using the charm logger.
	loggerImpl struct {
		charmLogger *charmlog.Logger
	}
)

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

func (c LogLevel) String() string {
	return string(c)
}

func (c LogLevel) toCharmlogLevel() charmlog.Level {
	switch c {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, keyvals ...any) { l.charmLogger.Debug(msg, keyvals...) }
func (l *loggerImpl) Info(msg string, keyvals ...any)  { l.charmLogger.Info(msg, keyvals...) }
func (l *loggerImpl) Warn(msg string, keyvals ...any)  { l.charmLogger.Warn(msg, keyvals...) }
func (l *loggerImpl) Error(msg string, keyvals ...any) { l.charmLogger.Error(msg, keyvals...) }

func (l *loggerImpl) With(keyvals ...any) Logger {
	return &loggerImpl{charmLogger: l.charmLogger.With(keyvals...)}
}

type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	charmLogger := charmlog.NewWithOptions(output, charmlog.Options{
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.toCharmlogLevel(),
	})
	if cfg.JSON {
		charmLogger.SetFormatter(charmlog.JSONFormatter)
	} else {
		charmLogger.SetFormatter(charmlog.TextFormatter)
	}
	return &loggerImpl{charmLogger: charmLogger}
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() Logger {
	return NewLogger(&Config{Level: ErrorLevel, Output: io.Discard})
}

// ContextWithLogger stores the logger in the context for downstream use.
func ContextWithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext retrieves the logger from the context, falling back to a
// default logger so call sites never nil-check.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(Logger); ok {
			return log
		}
	}
	return NewLogger(DefaultConfig())
}
