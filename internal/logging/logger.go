// Package logging adapts logrus to the runtime.Logger contract so the same room code
// logs through Nakama's logger in the plugin and through logrus in the standalone server.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/sirupsen/logrus"
)

// Logger implements runtime.Logger on top of a logrus entry.
type Logger struct {
	entry *logrus.Entry
}

var _ runtime.Logger = (*Logger)(nil)

// New wraps an existing logrus logger.
func New(l *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(l)}
}

// NewFromConfig builds a logrus logger writing to out with the given level ("debug", "info",
// "warn", "error") and format ("json" or "text").
func NewFromConfig(level, format string, out io.Writer) (*Logger, error) {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return New(l), nil
}

func (l *Logger) Debug(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.entry.Errorf(format, v...) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return &Logger{entry: l.entry.WithField(key, v)}
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(l.entry.Data))
	for k, v := range l.entry.Data {
		out[k] = v
	}
	return out
}
