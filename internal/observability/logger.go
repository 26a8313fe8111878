// Package observability wires logging, metrics and tracing for the server and CLI.
package observability

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns an *slog.Logger whose records are encoded by zap.
// Development uses colourised console output; everything else compact JSON.
// Call the returned sync func before exit to flush buffered entries.
func NewLogger(level string, development bool) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if development {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("observability.NewLogger: %w", err)
	}

	logger := slog.New(zapslog.NewHandler(zl.Core(), zapslog.WithCaller(true)))
	return logger, zl.Sync, nil
}

// NewNopLogger returns a logger that discards everything. Useful in tests.
func NewNopLogger() *slog.Logger {
	return slog.New(zapslog.NewHandler(zapcore.NewNopCore()))
}
