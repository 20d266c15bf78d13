package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapAdapter(t *testing.T) {
	t.Run("basic logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{
			Level:      DebugLevel,
			Output:     &buf,
			TimeFormat: time.RFC3339,
		})
		require.NoError(t, err)

		logger.Debug("debug message", Field{"key", "value"})
		logger.Info("info message", Field{"count", 42})
		logger.Warn("rate limit exceeded", Field{"limiter", "strict"})
		logger.Error("store failure", errors.New("connection refused"), Field{"backend", "redis"})

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "rate limit exceeded")
		assert.Contains(t, output, "strict")
		assert.Contains(t, output, "ERROR")
		assert.Contains(t, output, "connection refused")
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("visible warn")

		output := buf.String()
		assert.NotContains(t, output, "hidden")
		assert.Contains(t, output, "visible warn")
	})

	t.Run("with fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		logger = logger.WithFields(Field{"service", "admission"}, Field{"limiter", "general"})
		logger.Info("decision")

		output := buf.String()
		assert.Contains(t, output, "admission")
		assert.Contains(t, output, "general")
	})

	t.Run("with context", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
		ctx = context.WithValue(ctx, ClientKeyKey, "ip:1.2.3.4")
		logger.WithContext(ctx).Info("handled")

		output := buf.String()
		assert.Contains(t, output, "req-42")
		assert.Contains(t, output, "ip:1.2.3.4")
	})

	t.Run("context without values returns same logger", func(t *testing.T) {
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &bytes.Buffer{}})
		require.NoError(t, err)
		assert.Same(t, logger, logger.WithContext(context.Background()))
	})

	t.Run("prefix", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf, Prefix: "ratelimit"})
		require.NoError(t, err)

		logger.Info("started")
		assert.Contains(t, buf.String(), "ratelimit")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{" warn ", WarnLevel},
		{"warning", WarnLevel},
		{"Error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)
	SetGlobalLogger(logger)

	Info("global info", String("key", "value"))
	Warn("global warn", Int("count", 3))
	Error("global error", errors.New("boom"), Bool("retry", false))
	Debug("global debug", Duration("elapsed", time.Second))

	output := buf.String()
	assert.Contains(t, output, "global info")
	assert.Contains(t, output, "global warn")
	assert.Contains(t, output, "boom")
	assert.Contains(t, output, "global debug")
}

func TestInitGlobalLoggerWithFile(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	path := t.TempDir() + "/admission.log"
	t.Setenv("LOG_LEVEL", "error")

	require.NoError(t, InitGlobalLogger("debug", path))
	Debug("written to file")
	MustSync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitGlobalLoggerBadFile(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	err := InitGlobalLogger("info", t.TempDir()+"/missing/dir/admission.log")
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error("ignored", errors.New("x"))
		logger.WithFields(Err(errors.New("y"))).Info("ignored")
	})
}
