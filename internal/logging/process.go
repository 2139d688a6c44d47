package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProcessOptions controls the process logger used by long-running commands.
type ProcessOptions struct {
	// Console selects the human-readable encoder, used when stderr is a
	// terminal. Otherwise entries are JSON.
	Console bool
	Debug   bool
	// OutputPaths overrides where entries go. Defaults to stderr.
	OutputPaths []string
}

// NewProcessLogger builds the zap logger for server lifecycle events:
// startup, listen address, shutdown and internal failures. Per-call records
// go through Logger instead.
func NewProcessLogger(opts ProcessOptions) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Console {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
		cfg.ErrorOutputPaths = opts.OutputPaths
	}
	return cfg.Build()
}
