package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger passed to every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Field is a key/value pair attached to a log entry.
type Field = zap.Field

type zapLogger struct {
	z *zap.Logger
}

// New builds a JSON logger writing to stdout at the given level.
// An empty level falls back to "info", or "debug" when DEBUG=true.
func New(level string) (Logger, error) {
	if level == "" {
		level = "info"
		if os.Getenv("DEBUG") == "true" {
			level = "debug"
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Sampling = nil

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

// Must is New that exits the process on failure.
func Must(level string) Logger {
	l, err := New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

func String(key, val string) Field               { return zap.String(key, val) }
func Int(key string, val int) Field              { return zap.Int(key, val) }
func Float64(key string, val float64) Field      { return zap.Float64(key, val) }
func Bool(key string, val bool) Field            { return zap.Bool(key, val) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }
func Error(err error) Field                      { return zap.Error(err) }
func Any(key string, val any) Field              { return zap.Any(key, val) }
