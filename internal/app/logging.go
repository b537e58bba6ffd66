package app

import "go.uber.org/zap"

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Logger *zap.Logger
}

// NewLogger returns the application logger.
func NewLogger(cfg LoggingConfig) *zap.Logger {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named("app")
}
