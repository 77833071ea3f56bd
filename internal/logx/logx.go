// Package logx holds the process-wide structured logger.
package logx

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var lg *zap.SugaredLogger

// Init builds the logger at the given level ("debug", "info", "warn",
// "error"). Unknown levels fall back to info.
func Init(levelName string) {
	level := zapcore.InfoLevel
	switch strings.ToLower(levelName) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, _ := cfg.Build()
	lg = z.Sugar()
}

// L returns the shared logger, initializing it at info level on first
// use.
func L() *zap.SugaredLogger {
	if lg == nil {
		Init("info")
	}
	return lg
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() { _ = L().Sync() }
