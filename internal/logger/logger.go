package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap.Logger instance based on the provided configuration.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// FileName is the log file of one market: <exchange>_<symbol>.log.
func FileName(exchange, symbol string) string {
	return strings.ToLower(exchange) + "_" + symbol + ".log"
}

// NewFileLogger creates a JSON logger appending to dir/FileName(exchange, symbol).
// The directory is created if needed. Callers must Sync the logger when done.
func NewFileLogger(dir, exchange, symbol string) (*zap.Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory %s: %w", dir, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil // every trade log entry must be written
	cfg.OutputPaths = []string{filepath.Join(dir, FileName(exchange, symbol))}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	return log.With(zap.String("exchange", exchange), zap.String("symbol", symbol)), nil
}
