package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	l := GetLogger()
	t.Cleanup(func() { l.SetLogLevel("info") })

	l.SetLogLevel("error")
	assert.Equal(t, log.ErrorLevel, l.GetLevel())
	assert.Equal(t, log.ErrorLevel, log.GetLevel())

	l.SetLogLevel("bogus")
	assert.Equal(t, log.InfoLevel, l.GetLevel())
}

func TestConfigureFromEnv(t *testing.T) {
	l := GetLogger()
	t.Cleanup(func() { l.SetLogLevel("info") })

	t.Setenv("PLAYGROUND_LOG_LEVEL", "debug")
	l.ConfigureFromEnv()
	assert.Equal(t, log.DebugLevel, l.GetLevel())
}

func TestConfigureFromEnv_DevMode(t *testing.T) {
	l := GetLogger()
	t.Cleanup(func() { l.SetLogLevel("info") })

	t.Setenv("PLAYGROUND_LOG_LEVEL", "")
	t.Setenv("ENV", "dev")
	l.ConfigureFromEnv()
	assert.Equal(t, log.DebugLevel, l.GetLevel())
}
