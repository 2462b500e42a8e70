// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package logger provides structured logging for sqltype using zap.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/canonical/sqltype/internal/config"
)

// Logger wraps zap.SugaredLogger with context methods.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a new Logger from configuration.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	writer, err := buildWriter(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(buildEncoder(cfg.Format), writer, parseLevel(cfg.Level))
	return FromCore(core), nil
}

// FromCore creates a Logger writing to core.
func FromCore(core zapcore.Core) *Logger {
	base := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{
		SugaredLogger: base.Sugar(),
		base:          base,
	}
}

// NewDefault creates a Logger with default settings (warn level, text
// format, stderr).
func NewDefault() *Logger {
	logger, _ := New(&config.DefaultConfig().Logging)
	return logger
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// buildEncoder creates the appropriate encoder based on format.
func buildEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// buildWriter creates the output writer. Standard output carries command
// results, so logs default to standard error.
func buildWriter(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "stderr", "":
		return zapcore.AddSync(os.Stderr), nil
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// WithQuery returns a Logger with query context.
func (l *Logger) WithQuery(query string) *Logger {
	return l.with("query", query)
}

// WithDatabase returns a Logger with database context.
func (l *Logger) WithDatabase(name string) *Logger {
	return l.with("database", name)
}

// WithFile returns a Logger with source file context.
func (l *Logger) WithFile(filename string) *Logger {
	return l.with("file", filename)
}

// WithFields returns a Logger with additional fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
