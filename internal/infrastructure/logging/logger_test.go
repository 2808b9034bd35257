package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			logger, err := New(Config{Level: level})
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
		})
	}
}

func TestDefaultsFallBack(t *testing.T) {
	assert.NotNil(t, NewDefault().Logger)
	assert.NotNil(t, NewDevelopment().Logger)
	assert.NotNil(t, Wrap(nil).Logger)
}

func TestForChannelTagsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := Wrap(zap.New(core)).Named("pump").ForChannel(27, "SMD_GPSNMEA")

	logger.Info("drained")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "pump", entry.LoggerName)
	fields := entry.ContextMap()
	assert.EqualValues(t, 27, fields["channel"])
	assert.Equal(t, "SMD_GPSNMEA", fields["channel_name"])
}
