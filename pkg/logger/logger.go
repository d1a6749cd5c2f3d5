// Package logger holds the process-wide zap logger. Until Init runs, every
// call goes to a nop logger, so packages may log during early bootstrap.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global struct {
	mu  sync.RWMutex
	log *zap.Logger
}

func init() {
	global.log = zap.NewNop()
}

// Init replaces the nop logger with a production JSON logger at the given
// level. Unknown level strings fall back to info rather than failing startup.
func Init(level string) error {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	global.mu.Lock()
	global.log = built
	global.mu.Unlock()
	return nil
}

// Logger returns the current process logger.
func Logger() *zap.Logger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.log
}

// WithModule tags a child logger with the subsystem it serves.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Sync flushes any buffered entries.
func Sync() error {
	return Logger().Sync()
}

// Info logs at info level on the process logger.
func Info(msg string, fields ...zap.Field) {
	Logger().Info(msg, fields...)
}

// Error logs at error level on the process logger.
func Error(msg string, fields ...zap.Field) {
	Logger().Error(msg, fields...)
}
