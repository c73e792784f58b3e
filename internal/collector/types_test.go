package collector

import (
	"testing"
	"time"

	"klinecollector/pkg/binance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBoundsCoverWholeEndDay(t *testing.T) {
	cfg := testConfig(t, binance.Timeframe1h, "2023-01-01", "2023-01-02")
	startMs, endMs := cfg.Bounds()

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), startMs)
	assert.Equal(t, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC).UnixMilli()-1, endMs)
}

func TestConfigBoundsIgnoreTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	cfg := Config{
		Symbol:    "BTCUSDT",
		Timeframe: binance.Timeframe1d,
		StartDate: time.Date(2023, 5, 1, 18, 30, 0, 0, loc),
		EndDate:   time.Date(2023, 5, 1, 23, 0, 0, 0, loc),
	}
	startMs, endMs := cfg.Bounds()
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), startMs)
	assert.Equal(t, time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC).UnixMilli()-1, endMs)
}

func TestConfigValidate(t *testing.T) {
	good := testConfig(t, binance.Timeframe5m, "2023-01-01", "2023-01-01")
	require.NoError(t, good.Validate())

	bad := good
	bad.Symbol = " "
	assert.ErrorContains(t, bad.Validate(), "symbol")

	bad = good
	bad.Timeframe = "2h"
	assert.ErrorContains(t, bad.Validate(), "timeframe")

	bad = good
	bad.EndDate = good.StartDate.AddDate(0, 0, -1)
	assert.ErrorContains(t, bad.Validate(), "before start")

	bad = good
	bad.Delay = -time.Millisecond
	assert.ErrorContains(t, bad.Validate(), "delay")

	assert.Error(t, Config{}.Validate())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())

	_, err = ParseDate("2023-02-30")
	assert.Error(t, err)
	_, err = ParseDate("01/02/2023")
	assert.Error(t, err)
}

func TestStateHelpers(t *testing.T) {
	assert.True(t, StateRunning.Active())
	assert.True(t, StatePaused.Active())
	assert.False(t, StateIdle.Active())
	for _, s := range []State{StateCompleted, StateCancelled, StateFailed} {
		assert.True(t, s.Terminal())
		assert.False(t, s.Active())
	}
	assert.Equal(t, float64(50), Stats{TotalRequests: 4, CompletedRequests: 2}.Progress())
	assert.Zero(t, Stats{}.Progress())
}
