package logging

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}

	for in, want := range tests {
		got, err := ParseLevel(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("rejects unknown levels", func(t *testing.T) {
		_, err := ParseLevel("chatty")
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("enables the configured level and above", func(t *testing.T) {
		logger, err := NewLogger("warn")
		assert.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("fails on an unknown level", func(t *testing.T) {
		_, err := NewLogger("loud")
		assert.Error(t, err)
	})
}
