package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the engine's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// SetLogger replaces the engine's logger. A nil logger restores the no-op
// default.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}
