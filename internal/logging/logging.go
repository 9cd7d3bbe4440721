// Package logging wires a single structured logger used across every
// engine constructor, the way the teacher threads one llm.LLMProvider
// through its subsystems.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger writing JSON to stdout in production mode
// and console-formatted output in development mode.
func New(development bool) *zap.SugaredLogger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	logger, err := cfg.Build()
	if err != nil {
		// Logging construction failing is itself a Fatal-class condition;
		// there is nowhere to log it, so fall back to a no-op logger.
		logger = zap.NewNop()
		os.Stderr.WriteString("logging: falling back to no-op logger: " + err.Error() + "\n")
	}
	return logger.Sugar()
}

// Component returns a child logger tagged with the owning engine's name,
// e.g. "heartbeat", "maintenance", "memory".
func Component(base *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return base.With("component", name)
}
