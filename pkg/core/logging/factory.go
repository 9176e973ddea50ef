// ============================================================================
// cclbridge - CCL request facility client
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating zap-backed loggers
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Shared level for every logger built from the global configuration.
	globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	globalMu   sync.RWMutex
	globalBase *zap.Logger
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (debug, info, warn, error)
	Level string

	// Output format: "json" or "text" (default: json)
	Format string

	// Outputs: "stdout", "stderr" or file paths (default: stderr)
	Outputs []string

	// Rotation applies to file outputs
	Rotation RotationConfig

	// Additional outputs besides Outputs
	AdditionalOutputs []io.Writer
}

// RotationConfig controls file rotation for file outputs
type RotationConfig struct {
	Enabled    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "json",
		Outputs:     []string{"stderr"},
	}
}

// NewLogger creates a standalone logger from cfg. Its level is independent of
// the global level.
func NewLogger(cfg LoggerConfig) *Logger {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level).zapLevel())
	base := buildZap(cfg, level).Named(cfg.ServiceName)
	return &Logger{fixed: base.Sugar(), name: cfg.ServiceName}
}

// Configure replaces the global logging backend. Loggers obtained through New
// pick up the change on their next call.
func Configure(cfg LoggerConfig) {
	globalLevel.SetLevel(ParseLevel(cfg.Level).zapLevel())
	base := buildZap(cfg, globalLevel)

	globalMu.Lock()
	old := globalBase
	globalBase = base
	globalMu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
}

// SetLevel changes the level of every logger created through New
func SetLevel(level Level) {
	globalLevel.SetLevel(level.zapLevel())
}

// GetLevel returns the current global level
func GetLevel() Level {
	switch globalLevel.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// Sync flushes the global backend
func Sync() error {
	return currentBase().Sync()
}

func currentBase() *zap.Logger {
	globalMu.RLock()
	base := globalBase
	globalMu.RUnlock()
	if base != nil {
		return base
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBase == nil {
		globalBase = buildZap(DefaultLoggerConfig(""), globalLevel)
	}
	return globalBase
}

func buildZap(cfg LoggerConfig, level zap.AtomicLevel) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "text" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	outputs := cfg.Outputs
	if len(outputs) == 0 && len(cfg.AdditionalOutputs) == 0 {
		outputs = []string{"stderr"}
	}

	var cores []zapcore.Core
	for _, out := range outputs {
		cores = append(cores, zapcore.NewCore(encoder, openOutput(out, cfg.Rotation), level))
	}
	for _, w := range cfg.AdditionalOutputs {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func openOutput(out string, rot RotationConfig) zapcore.WriteSyncer {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr", "":
		return zapcore.AddSync(os.Stderr)
	}

	if dir := filepath.Dir(out); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	if rot.Enabled {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   out,
			MaxSize:    max(rot.MaxSizeMB, 10),
			MaxBackups: max(rot.MaxBackups, 1),
			MaxAge:     max(rot.MaxAgeDays, 7),
			Compress:   rot.Compress,
		})
	}

	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// fall back to stderr so a bad path never silences logs
		return zapcore.AddSync(os.Stderr)
	}
	return zapcore.AddSync(f)
}

// Logger wraps a zap SugaredLogger with key/value methods
type Logger struct {
	fixed  *zap.SugaredLogger
	name   string
	fields []interface{}
	level  *Level
}

// New creates a logger that follows the global configuration
func New(name string) *Logger {
	return &Logger{name: name}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{fixed: zap.NewNop().Sugar(), name: "nop"}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// With returns a logger that adds the key/value pairs to every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	clone := *l
	clone.fields = append(append([]interface{}{}, l.fields...), keysAndValues...)
	return &clone
}

// WithLevel returns a logger that drops entries below level
func (l *Logger) WithLevel(level Level) *Logger {
	clone := *l
	clone.level = &level
	return &clone
}

func (l *Logger) sugar() *zap.SugaredLogger {
	var s *zap.SugaredLogger
	if l.fixed != nil {
		s = l.fixed
	} else {
		s = currentBase().Named(l.name).Sugar()
	}
	if len(l.fields) > 0 {
		s = s.With(l.fields...)
	}
	return s
}

func (l *Logger) enabled(level Level) bool {
	return l.level == nil || level >= *l.level
}

// Debug logs a debug message with key/value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if l.enabled(LevelDebug) {
		l.sugar().Debugw(msg, keysAndValues...)
	}
}

// Info logs an info message with key/value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if l.enabled(LevelInfo) {
		l.sugar().Infow(msg, keysAndValues...)
	}
}

// Warn logs a warning message with key/value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if l.enabled(LevelWarn) {
		l.sugar().Warnw(msg, keysAndValues...)
	}
}

// Error logs an error message with key/value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	if l.enabled(LevelError) {
		l.sugar().Errorw(msg, keysAndValues...)
	}
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.sugar().Sync()
}
