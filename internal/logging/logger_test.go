package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := &Logger{Logger: zap.New(core), level: zap.NewAtomicLevelAt(zap.InfoLevel)}

	t.Run("RequestIDCarriedThroughContext", func(t *testing.T) {
		ctx := ContextWithRequestID(context.Background(), "req-123")
		logger.WithRequestID(ctx).Info("handled")

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	})

	t.Run("MissingRequestIDAddsNothing", func(t *testing.T) {
		logger.WithRequestID(context.Background()).Info("handled")

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.NotContains(t, entries[0].ContextMap(), "request_id")
	})
}

func TestSetLevel(t *testing.T) {
	logger, err := NewLogger("info")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	require.NoError(t, logger.SetLevel("debug"))
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	assert.Error(t, logger.SetLevel("nope"))
}
