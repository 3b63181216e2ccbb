// Package logger owns process-wide logger configuration. Packages log
// through the charmbracelet global logger; this package keeps its level in
// sync with the singleton so one knob controls both.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps the shared charmbracelet logger.
type Logger struct {
	*log.Logger
}

var (
	instance *Logger
	once     sync.Once
)

// GetLogger returns the singleton logger.
func GetLogger() *Logger {
	once.Do(func() {
		instance = &Logger{
			Logger: log.NewWithOptions(os.Stderr, log.Options{
				Level:           log.InfoLevel,
				ReportTimestamp: true,
				TimeFormat:      "15:04:05",
			}),
		}
	})
	return instance
}

// SetLogLevel sets the level from a string. Unknown values fall back to
// info. The global default logger is updated too.
func (l *Logger) SetLogLevel(level string) {
	parsed := log.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		parsed = log.DebugLevel
	case "info":
		parsed = log.InfoLevel
	case "warn", "warning":
		parsed = log.WarnLevel
	case "error":
		parsed = log.ErrorLevel
	case "fatal":
		parsed = log.FatalLevel
	}

	l.SetLevel(parsed)
	log.SetLevel(parsed)
}

// ConfigureFromEnv applies PLAYGROUND_LOG_LEVEL, or debug when ENV=dev.
func (l *Logger) ConfigureFromEnv() {
	if level := os.Getenv("PLAYGROUND_LOG_LEVEL"); level != "" {
		l.SetLogLevel(level)
		return
	}
	if os.Getenv("ENV") == "dev" {
		l.SetLogLevel("debug")
	}
}
