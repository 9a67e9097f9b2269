package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config selects the level and an optional file that receives a copy of
// every log line.
type Config struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call builds it from cfg;
// later calls ignore cfg.
func Get(cfg Config) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(cfg)
	})
	return globalLogger
}

// Nop returns a logger that discards everything. Meant for tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
