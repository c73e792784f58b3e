package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"klinecollector/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// go test -v --run TestNewWritesJSONFile
func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collector.log")
	logger, err := New(config.LogConfig{
		Level:       "info",
		Format:      "json",
		OutputFile:  path,
		Environment: "prod",
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("collection started", zap.String("symbol", "BTCUSDT"))
	_ = Sync(logger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"collection started"`)
	assert.Contains(t, out, `"symbol":"BTCUSDT"`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, err := New(config.LogConfig{Environment: "dev"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}
