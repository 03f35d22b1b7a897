package logging

import (
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	logger, err := New(Config{Dir: t.TempDir(), Level: "debug"})
	require.NoError(t, err)

	logger.Info().Str("component", "test").Msg("hello from the daemon")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello from the daemon"`)
	assert.Contains(t, string(data), `"app":"cortexvoice"`)
	assert.True(t, strings.HasSuffix(logger.Path(), ".log"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestSetLevelFilters(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger, err := New(Config{Dir: t.TempDir(), Level: "warn"})
	require.NoError(t, err)

	logger.Info().Msg("filtered out")
	logger.Warn().Msg("kept")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}
