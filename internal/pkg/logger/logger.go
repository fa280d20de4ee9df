package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Options configures the default logger.
type Options struct {
	Level     string
	Mode      string // "prod" for JSON, anything else for console
	RedactPII bool
}

// Logger provides structured logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	sugar     *zap.SugaredLogger
	level     zap.AtomicLevel
	redactPII bool
}

var defaultLogger = newDefault()

func newDefault() *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar(), level: level, redactPII: true}
}

// Init rebuilds the default logger from options. Call once from main.
func Init(opts Options) error {
	level := zap.NewAtomicLevelAt(zapLevels[ParseLevel(opts.Level)])

	var cfg zap.Config
	switch strings.ToLower(opts.Mode) {
	case "prod", "production", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level

	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	defaultLogger.mu.Lock()
	defaultLogger.sugar = z.Sugar()
	defaultLogger.level = level
	defaultLogger.redactPII = opts.RedactPII
	defaultLogger.mu.Unlock()
	return nil
}

// ReplaceCore swaps the default logger's core and returns a function that
// restores the previous logger. Intended for tests.
func ReplaceCore(core zapcore.Core) func() {
	defaultLogger.mu.Lock()
	prev := defaultLogger.sugar
	defaultLogger.sugar = zap.New(core).Sugar()
	defaultLogger.mu.Unlock()
	return func() {
		defaultLogger.mu.Lock()
		defaultLogger.sugar = prev
		defaultLogger.mu.Unlock()
	}
}

// Sync flushes buffered entries.
func Sync() {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	_ = defaultLogger.sugar.Sync()
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level.SetLevel(zapLevels[l]) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	sugar, redact := l.sugar, l.redactPII
	l.mu.RUnlock()

	kv := fields
	if redact {
		kv = sanitizeKVs(fields)
	}

	switch level {
	case DEBUG:
		sugar.Debugw(msg, kv...)
	case INFO:
		sugar.Infow(msg, kv...)
	case WARN:
		sugar.Warnw(msg, kv...)
	default:
		sugar.Errorw(msg, kv...)
	}
}
