// Package logging configures the process-wide logrus logger.
//
// Every long-running component logs through an entry carrying a "component"
// field. Notable state transitions are emitted with LogEvent, which adds an
// "event_type" field so the JSON output can be filtered per event.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Setup points the standard logger at w with JSON output at the given level.
func Setup(level string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetOutput(w)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return nil
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// LogEvent records a structured event at info level.
func LogEvent(entry *logrus.Entry, eventType string, fields logrus.Fields) {
	entry.WithFields(fields).WithField("event_type", eventType).Info(eventType)
}
