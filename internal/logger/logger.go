// Package logger provides the structured logging handle injected into
// every subsystem of the backup core. There is no package-level default
// logger: callers construct one and pass it down explicitly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field, re-exported so callers never
// import zap directly.
type Field = zap.Field

// String, Int, Bool, Err, Duration and friends construct Fields without
// requiring callers to know about zap.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Uint64   = zap.Uint64
	Bool     = zap.Bool
	Err      = zap.Error
	Duration = zap.Duration
	Any      = zap.Any
)

// Logger is the leveled structured logging interface every subsystem
// depends on. Constructed once at the top of a program and threaded
// through via struct fields, never a package global.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a derived Logger that always includes fields.
	With(fields ...Field) Logger
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production-profile JSON logger writing to stderr at the
// given level.
func New(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	z, err := cfg.Build()
	if err != nil {
		// Config is static and known-good; fall back rather than panic
		// in a library constructor.
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// NewDevelopment builds a human-readable console logger, useful for
// tests and local runs of the continuous-sync daemon.
func NewDevelopment() Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// Noop returns a Logger that discards everything, for tests that don't
// care about log output.
func Noop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}
