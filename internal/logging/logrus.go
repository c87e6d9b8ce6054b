package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/arloliu/meshpart/types"
)

// LogrusLogger implements types.Logger on top of logrus.
//
// Key-value pairs become logrus fields. A key that is not a string is rendered
// with fmt, and a trailing key without value is logged as "<missing>".
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// Compile-time assertion that LogrusLogger implements Logger.
var _ types.Logger = (*LogrusLogger)(nil)

// NewLogrus wraps a logrus logger or entry.
//
// Parameters:
//   - logger: *logrus.Logger or *logrus.Entry; nil uses logrus.StandardLogger()
//
// Returns:
//   - *LogrusLogger: Logger forwarding every call to logger
func NewLogrus(logger logrus.FieldLogger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &LogrusLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

// Info logs an info-level message with optional key-value pairs.
func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Info(msg)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Warn(msg)
}

// Error logs an error-level message with optional key-value pairs.
func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Error(msg)
}

// Fatal logs a fatal-level message; logrus exits the process afterwards.
func (l *LogrusLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Fatal(msg)
}

func fields(keysAndValues []any) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 < len(keysAndValues) {
			f[key] = keysAndValues[i+1]
		} else {
			f[key] = "<missing>"
		}
	}

	return f
}
