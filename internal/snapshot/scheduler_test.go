package snapshot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"klinecollector/internal/memorystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilMidnight(t *testing.T) {
	now := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, 90*time.Minute, untilMidnight(now))

	loc := time.FixedZone("UTC+9", 9*3600)
	assert.Equal(t, 90*time.Minute, untilMidnight(now.In(loc)))
}

// go test -v --run TestMidnightRefresherReloads
func TestMidnightRefresherReloads(t *testing.T) {
	var calls atomic.Int32
	store := memorystore.NewSymbolStore()
	r := &MidnightRefresher{
		Loader: &SymbolLoader{
			Client: listerFunc(func(context.Context, string) ([]string, error) {
				if calls.Add(1) == 1 {
					return []string{"BTCUSDT"}, nil
				}
				return []string{"ETHUSDT"}, nil
			}),
		},
		Store:     store,
		untilNext: func(time.Time) time.Duration { return time.Millisecond },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Contains("ETHUSDT") }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, store.Contains("BTCUSDT"))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
