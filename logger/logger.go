package logger

import (
	"go.uber.org/zap"
)

// Global logger instance
var Logger *zap.SugaredLogger

func init() {
	// Safe no-op logger until Initialize is called, so early package-level
	// logging never panics
	Logger = zap.NewNop().Sugar()
}

// Initialize builds the global logger. Production mode emits JSON, anything
// else uses the human-readable development encoder.
func Initialize(environment string) error {
	var zapLogger *zap.Logger
	var err error

	if environment == "production" {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = config.Build()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Component returns a child logger tagged with a component name
func Component(name string) *zap.SugaredLogger {
	return Logger.With("component", name)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = Logger.Sync()
}
