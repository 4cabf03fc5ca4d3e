package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
		" debug ": LogLevelDebug,
		"TRACE":   LogLevelTrace,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestNewDefaultLogger_ReadsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	l := NewDefaultLogger()
	assert.Equal(t, LogLevelDebug, l.GetLevel())
	l.Trace("suppressed %d", 1)
	l.With("stage", "did").Debug("visible")
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("nothing %s", "here")
	assert.NoError(t, l.Sync())
}
