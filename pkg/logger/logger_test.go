package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"storefront/config"
	"storefront/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNilLoggerSafety(t *testing.T) {
	saved := log
	t.Cleanup(func() { log = saved })
	log = nil

	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info")
		Warn("warn")
		Error("error")
		With(zap.String("key", "value")).Info("with")
		Ctx(context.Background()).Info("ctx")
	})
	assert.NoError(t, Sync())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestDynamicLogLevel(t *testing.T) {
	require.NoError(t, Init(&config.LogConfig{Level: "debug", Output: "stdout"}, "development"))
	t.Cleanup(func() { _ = Sync() })

	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
	UpdateLevel("warn")
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
	UpdateLevel("info")
}

func TestFileOutputRotationTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storefront.log")

	require.NoError(t, Init(&config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path}, "production"))
	Info("order settled", zap.Int64("order_id", 41))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order settled"`)
	assert.Contains(t, string(data), `"env":"production"`)
	assert.Contains(t, string(data), `"order_id":41`)
}

func TestCtxCarriesRequestID(t *testing.T) {
	saved := log
	t.Cleanup(func() { log = saved })
	core, logs := observer.New(zapcore.InfoLevel)
	log = zap.New(core)

	ctx := persistence.ContextWithRequestID(context.Background(), "req-42")
	Ctx(ctx).Info("refund settled", zap.Int64("order_id", 7))
	Ctx(context.Background()).Info("no request")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "********7890", Mask("ABCD12347890"))
	assert.Equal(t, "*****1234", Mask("T08GB1234"))
}
