package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogrus(level logrus.Level) (*LogrusLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	return NewLogrus(l), buf
}

func TestLogrusLogger_Levels(t *testing.T) {
	logger, buf := newBufferedLogrus(logrus.DebugLevel)

	logger.Debug("debug message", "rank", 2)
	logger.Info("info message", "quality", 0.5)
	logger.Warn("warn message")
	logger.Error("error message", "err", "boom")

	output := buf.String()
	assert.Contains(t, output, `level=debug msg="debug message" rank=2`)
	assert.Contains(t, output, `level=info msg="info message" quality=0.5`)
	assert.Contains(t, output, `level=warning msg="warn message"`)
	assert.Contains(t, output, `level=error msg="error message" err=boom`)
}

func TestLogrusLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogrus(logrus.WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestLogrusLogger_OddKeyValues(t *testing.T) {
	logger, buf := newBufferedLogrus(logrus.InfoLevel)

	logger.Info("odd", "level_index", 3, 42)

	require.Contains(t, buf.String(), "level_index=3")
	require.Contains(t, buf.String(), "42=\"<missing>\"")
}

func TestNewLogrus_NilUsesStandardLogger(t *testing.T) {
	logger := NewLogrus(nil)
	require.NotNil(t, logger.logger)
}
