package logger

import (
	"os"
	"path/filepath"
	"storefront/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(config.LoggerConfig{Mode: "production", Filename: path})
	require.NoError(t, err)

	log.Info("stock reserved", zap.String("product_id", "P1"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"product_id":"P1"`)
	assert.Same(t, log, zap.L())
}

func TestNewDevelopment(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(config.LoggerConfig{Mode: "development"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}
