package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kmsv-2726/federated-socmed/config"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestInitToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init(config.LogConfig{Level: "debug", Format: "json", Output: out}))
	Info("hello", zap.String("k", "v"))
	assert.NoError(t, Sync())
	t.Cleanup(func() { Set(nil) })
}

func TestSetObserver(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("dropped")
	Warn("queue full", zap.String("target", "srv1/user/1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "queue full", entries[0].Message)
	assert.Equal(t, "srv1/user/1", entries[0].ContextMap()["target"])
}
