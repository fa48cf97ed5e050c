package logger_test

import (
	"testing"
	"todoTree/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit_LevelOverride(t *testing.T) {
	require.NoError(t, logger.Init(false, "warn"))
	defer logger.Sync()

	assert.Equal(t, zapcore.WarnLevel, logger.Level())
	assert.False(t, logger.Logger.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, logger.SetLevel("debug"))
	assert.True(t, logger.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInit_ModeDefaults(t *testing.T) {
	require.NoError(t, logger.Init(true, ""))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())

	require.NoError(t, logger.Init(false, ""))
	assert.Equal(t, zapcore.InfoLevel, logger.Level())
}

func TestSetLevel_Invalid(t *testing.T) {
	assert.Error(t, logger.SetLevel("loud"))
	assert.Error(t, logger.Init(false, "loud"))
}
