// Package obslog wraps zap behind the narrow Logger interface used across
// the engine, mirroring the structured-logging convention the rest of the
// stack uses: JSON production encoding, level taken from configuration, and
// key/value field pairs rather than formatted strings.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every engine component depends on.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	// With returns a derived logger carrying the given key/value pairs on
	// every subsequent call.
	With(fields ...interface{}) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a production-style JSON logger at the given level ("debug",
// "info", "warn", "error"; defaults to "info").
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &zapLogger{l: zap.NewNop()}
}

// NewFromZap adapts an already-built *zap.Logger, for callers (like the fx
// composition root) that need the raw logger for other components too.
func NewFromZap(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

func (z *zapLogger) Debug(msg string, fields ...interface{}) { z.l.Debug(msg, convert(fields)...) }
func (z *zapLogger) Info(msg string, fields ...interface{})  { z.l.Info(msg, convert(fields)...) }
func (z *zapLogger) Warn(msg string, fields ...interface{})  { z.l.Warn(msg, convert(fields)...) }
func (z *zapLogger) Error(msg string, fields ...interface{}) { z.l.Error(msg, convert(fields)...) }

func (z *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{l: z.l.With(convert(fields)...)}
}

// convert turns a flat key, value, key, value... slice into zap.Fields. An
// odd trailing element is kept as a key with the value "<missing>" rather
// than dropped. A key that is not a string is replaced by a generated
// field_N name.
func convert(fields []interface{}) []zap.Field {
	if len(fields)%2 != 0 {
		fields = append(fields, "<missing>")
	}
	out := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("field_%d", i/2)
		}
		out = append(out, zap.Any(key, fields[i+1]))
	}
	return out
}
