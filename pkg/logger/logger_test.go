package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := wrap(zap.New(core))

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-9")
	l.WithContext(ctx).Infof("sent %d", 3)
	l.WithContext(context.Background()).Warnf("bare")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "sent 3", entries[0].Message)
	assert.Equal(t, map[string]any{"request_id": "req-1", "user_id": "user-9"}, entries[0].ContextMap())
	assert.Empty(t, entries[1].ContextMap())
}

func TestGlobalLogger(t *testing.T) {
	assert.NotNil(t, GetGlobalLogger())

	core, logs := observer.New(zap.InfoLevel)
	SetGlobalLogger(wrap(zap.New(core)).Named("outbox"))
	t.Cleanup(func() { global.Store(nil) })

	GetGlobalLogger().Infof("published")
	GetGlobalLogger().Debugf("filtered")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "outbox", logs.All()[0].LoggerName)
}
