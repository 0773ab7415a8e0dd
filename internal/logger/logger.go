// Package logger holds the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.RWMutex
	base *logrus.Logger
)

// Initialize configures the global logger. level is one of debug, info,
// warn or error; format is "json" or "text".
func Initialize(level, format string) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	mu.Lock()
	base = l
	mu.Unlock()
}

// Get returns the global logger, initializing it with defaults if
// Initialize has not run.
func Get() *logrus.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}
	Initialize("info", "text")
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithService tags entries with the emitting component.
func WithService(name string) *logrus.Entry {
	return Get().WithField("service", name)
}

// WithFields is a shorthand for Get().WithFields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}

// Discard returns an entry that drops everything; tests use it to keep
// output quiet.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
