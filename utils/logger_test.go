package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupLoggerWritesFile(t *testing.T) {
	restoreLogger(t)

	path := filepath.Join(t.TempDir(), "frontenv.log")
	closer, err := SetupLogger(LogConfig{Level: "debug", File: path, JSON: true})
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	log.Debug().Str("component", "test").Msg("[test] hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"[test] hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestSetupLoggerDefaults(t *testing.T) {
	restoreLogger(t)

	closer, err := SetupLogger(LogConfig{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupLoggerInvalidLevel(t *testing.T) {
	restoreLogger(t)

	_, err := SetupLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
