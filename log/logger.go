// Package log provides logging for reactview.
package log

import (
	"io"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/viewfabric/reactview/env"
)

// Logger wraps a logrus.Logger and adds category support, so that log
// lines can be filtered per subsystem ("WebView:onRequestPaused", "cdp",
// "ViewCache", ...).
type Logger struct {
	*logrus.Logger
	debugOverride  bool
	categoryFilter *regexp.Regexp
}

// New creates a Logger attached to the given output.
func New(out io.Writer) *Logger {
	ll := logrus.New()
	ll.SetOutput(out)
	ll.SetFormatter(&ConsoleFormatter{})
	return &Logger{Logger: ll}
}

// NewNullLogger returns a Logger that discards everything. Useful in tests.
func NewNullLogger() *Logger {
	ll := logrus.New()
	ll.SetOutput(io.Discard)
	return &Logger{Logger: ll}
}

// NewFromEnv creates a Logger configured from the environment: log level,
// category filter and debug override.
func NewFromEnv(lookup env.LookupFunc) (*Logger, error) {
	l := New(os.Stderr)
	if v, ok := lookup(env.LogLevel); ok {
		if err := l.SetLevel(v); err != nil {
			return nil, err
		}
	}
	if v, ok := lookup(env.LogCategoryFilter); ok && v != "" {
		filter, err := regexp.Compile(v)
		if err != nil {
			return nil, err
		}
		l.categoryFilter = filter
	}
	l.debugOverride = env.IsSet(lookup, env.DebugMode)
	return l, nil
}

// SetLevel sets the logger level from a level string.
func (l *Logger) SetLevel(level string) error {
	pl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.Logger.SetLevel(pl)
	return nil
}

// SetCategoryFilter restricts output to categories matching the pattern.
func (l *Logger) SetCategoryFilter(pattern string) error {
	filter, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	l.categoryFilter = filter
	return nil
}

// DebugMode returns true if the logger level is set to Debug or higher.
func (l *Logger) DebugMode() bool {
	return l.debugOverride || l.Logger.GetLevel() >= logrus.DebugLevel
}

// Tracef logs a formatted message under the given category.
func (l *Logger) Tracef(category string, msg string, args ...any) {
	l.logf(logrus.TraceLevel, category, msg, args...)
}

// Debugf logs a formatted message under the given category.
func (l *Logger) Debugf(category string, msg string, args ...any) {
	l.logf(logrus.DebugLevel, category, msg, args...)
}

// Infof logs a formatted message under the given category.
func (l *Logger) Infof(category string, msg string, args ...any) {
	l.logf(logrus.InfoLevel, category, msg, args...)
}

// Warnf logs a formatted message under the given category.
func (l *Logger) Warnf(category string, msg string, args ...any) {
	l.logf(logrus.WarnLevel, category, msg, args...)
}

// Errorf logs a formatted message under the given category.
func (l *Logger) Errorf(category string, msg string, args ...any) {
	l.logf(logrus.ErrorLevel, category, msg, args...)
}

func (l *Logger) logf(level logrus.Level, category string, msg string, args ...any) {
	if l.categoryFilter != nil && !l.categoryFilter.MatchString(category) {
		return
	}
	entry := l.WithField("category", category)
	if l.Logger.GetLevel() < level && l.debugOverride {
		// Debug override bypasses the level check so that enabling debug
		// mode surfaces everything without reconfiguring the logger.
		entry.Printf(msg, args...)
		return
	}
	entry.Logf(level, msg, args...)
}
