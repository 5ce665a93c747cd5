package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with additional functionality
type Logger struct {
	*zap.Logger
}

// Config controls level and output format of a Logger.
type Config struct {
	Level       string `json:"level" yaml:"level" jsonschema:"description=Log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Encoding    string `json:"encoding" yaml:"encoding" jsonschema:"description=Log encoding,enum=json,enum=console,default=json"`
	Development bool   `json:"development" yaml:"development" jsonschema:"description=Enable development mode (stack traces on warn)"`
}

// NewLogger creates a new logger instance with production configuration
func NewLogger() (*Logger, error) {
	return NewLoggerWithConfig(Config{Level: "info", Encoding: "json", Development: false})
}

// NewLoggerWithConfig creates a logger for the given level and encoding.
// Empty fields fall back to the production defaults.
func NewLoggerWithConfig(cfg Config) (*Logger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Development = cfg.Development
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	config.Level = zap.NewAtomicLevelAt(level)

	if cfg.Encoding != "" {
		config.Encoding = cfg.Encoding
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}
	return nil
}
