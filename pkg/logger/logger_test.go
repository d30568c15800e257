package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_ParsesLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New(Config{Level: "debug"}).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New(Config{Level: " WARN "}).GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, New(Config{Level: "error"}).GetLevel())
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New(Config{Level: "verbose"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(Config{}).GetLevel())
}

func TestNew_LevelDoesNotLeakBetweenLoggers(t *testing.T) {
	debug := New(Config{Level: "debug"})
	errOnly := New(Config{Level: "error"})

	assert.Equal(t, zerolog.DebugLevel, debug.GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, errOnly.GetLevel())
}
