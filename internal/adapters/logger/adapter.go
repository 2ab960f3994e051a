// Package logger provides the zap-backed adapter for the logging interface
// used throughout the application.
package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface used throughout the application.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// ZapAdapter adapts a zap.Logger to the application's logging interface.
type ZapAdapter struct {
	log *zap.Logger
}

// Options configures the logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to
	// info.
	Level string

	// AppName is attached to every entry.
	AppName string

	// FilePath, when set, sends log output to a size-rotated file instead of
	// stderr, keeping stderr free for user-facing messages.
	FilePath string
}

// New creates a ZapAdapter.
func New(opts Options) *ZapAdapter {
	level := parseLevel(opts.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if opts.FilePath != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	log := zap.New(core)
	if opts.AppName != "" {
		log = log.With(zap.String("app", opts.AppName))
	}
	return &ZapAdapter{log: log}
}

// NewNop returns an adapter that discards everything, for tests.
func NewNop() *ZapAdapter {
	return &ZapAdapter{log: zap.NewNop()}
}

// Sync flushes any buffered entries.
func (a *ZapAdapter) Sync() error {
	return a.log.Sync()
}

// Info logs an info message.
func (a *ZapAdapter) Info(_ context.Context, msg string, fields map[string]any) {
	a.log.Info(msg, toZapFields(fields)...)
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(_ context.Context, msg string, fields map[string]any) {
	a.log.Debug(msg, toZapFields(fields)...)
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(_ context.Context, msg string, fields map[string]any) {
	a.log.Warn(msg, toZapFields(fields)...)
}

// Error logs an error message.
func (a *ZapAdapter) Error(_ context.Context, msg string, err error, fields map[string]any) {
	zf := toZapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	a.log.Error(msg, zf...)
}

func toZapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
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
