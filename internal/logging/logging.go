package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Setup installs a JSON zap logger as the global logger and returns it.
func Setup(level string) *zap.Logger {
	var logLevel zapcore.Level
	switch level {
	case "debug":
		logLevel = zapcore.DebugLevel
	case "warn":
		logLevel = zapcore.WarnLevel
	case "error":
		logLevel = zapcore.ErrorLevel
	default:
		logLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	zap.ReplaceGlobals(logger)
	return logger
}

// Fatalf logs at error level and exits. Before Setup the global logger is a
// no-op, so the message goes straight to stderr instead.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l := zap.L(); l.Core().Enabled(zapcore.ErrorLevel) {
		l.Error(msg)
		_ = l.Sync()
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
