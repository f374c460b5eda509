package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "json").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "console").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("", "console").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New(" ERROR ", "json").Core().Enabled(zapcore.WarnLevel))
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", CorrelationID(ctx))

	ctx = WithCorrelationID(ctx, "req-1")
	assert.Equal(t, "req-1", CorrelationID(ctx))
}

func TestFrom_AddsCorrelationField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	From(WithCorrelationID(context.Background(), "req-9"), base).Info("hello")
	From(context.Background(), base).Info("bare")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-9", entries[0].ContextMap()["correlation_id"])
	assert.NotContains(t, entries[1].ContextMap(), "correlation_id")

	assert.NotPanics(t, func() { From(context.Background(), nil).Info("nop") })
}
