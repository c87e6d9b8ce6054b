package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelDebug)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "rank", 1)
	logger.Warn("warn message")
	logger.Error("error message", "err", "boom")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "rank=1")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "err=boom")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_With(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelInfo)

	logger.With("rank", 3).Info("partitioned")

	require.Contains(t, buf.String(), "rank=3")
	require.Contains(t, buf.String(), "partitioned")
}

func TestNewSlogDefault(t *testing.T) {
	require.NotNil(t, NewSlogDefault().logger)
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	require.NotPanics(t, func() {
		logger.Debug("msg", "key", "value")
		logger.Info("msg")
		logger.Warn("msg", "odd")
		logger.Error("msg", nil)
		logger.Fatal("msg") // must not exit
	})

	require.IsType(t, &NopLogger{}, OrNop(nil))
	require.Same(t, logger, OrNop(logger))
}

func TestTestLogger_Captures(t *testing.T) {
	logger := NewTest(t)

	logger.Info("window split", "hlevel", 1, "procs", 4)
	logger.Warn("odd pair", "key")

	entries := logger.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "INFO", entries[0].Level)
	require.Equal(t, 4, entries[0].Fields["procs"])
	require.True(t, logger.Contains("window split"))
	require.False(t, logger.Contains("absent"))
}
