package ratebudget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	b := New(1200)
	assert.Equal(t, State{
		RequestsInWindow:     0,
		MaxRequestsPerMinute: 1200,
		RemainingRequests:    1200,
		SafeIntervalMs:       50,
	}, b.State())
	assert.Equal(t, 50*time.Millisecond, b.SafeInterval())

	assert.Equal(t, DefaultMaxRequestsPerMinute, New(0).State().MaxRequestsPerMinute)
}

// go test -v --run TestTrackRequest
func TestTrackRequest(t *testing.T) {
	for _, k := range []int{0, 1, 5, 60, 75} {
		b := New(60)
		for i := 0; i < k; i++ {
			b.TrackRequest()
		}
		s := b.State()
		assert.Equal(t, k, s.RequestsInWindow)
		assert.Equal(t, max(0, 60-k), s.RemainingRequests, "k=%d", k)
	}
}

func TestResetWindow(t *testing.T) {
	b := New(100)
	for i := 0; i < 30; i++ {
		b.TrackRequest()
	}
	b.ResetWindow()

	s := b.State()
	assert.Equal(t, 0, s.RequestsInWindow)
	assert.Equal(t, 100, s.RemainingRequests)
}

func TestUpdateMaxRequests(t *testing.T) {
	b := New(1200)
	b.UpdateMaxRequests(600)
	assert.Equal(t, int64(100), b.State().SafeIntervalMs)

	b.UpdateMaxRequests(7)
	assert.Equal(t, int64(8572), b.State().SafeIntervalMs) // ceil(60000/7)

	b.UpdateMaxRequests(0)
	assert.Equal(t, 7, b.State().MaxRequestsPerMinute)
}

func TestUpdateMaxRequestsBelowUsage(t *testing.T) {
	b := New(200)
	for i := 0; i < 150; i++ {
		b.TrackRequest()
	}
	b.UpdateMaxRequests(100)

	s := b.State()
	assert.Equal(t, -50, s.RemainingRequests)
	assert.Equal(t, 150, s.RequestsInWindow)

	b.ResetWindow()
	assert.Equal(t, 100, b.State().RemainingRequests)
}

func TestOnChange(t *testing.T) {
	b := New(10)
	var seen []State
	b.OnChange(func(s State) { seen = append(seen, s) })

	b.TrackRequest()
	b.UpdateMaxRequests(20)
	b.ResetWindow()

	require.Len(t, seen, 3)
	assert.Equal(t, 9, seen[0].RemainingRequests)
	assert.Equal(t, 19, seen[1].RemainingRequests)
	assert.Equal(t, 20, seen[2].RemainingRequests)
}

func TestStartResetsPeriodically(t *testing.T) {
	b := New(10)
	for i := 0; i < 10; i++ {
		b.TrackRequest()
	}
	require.Equal(t, 0, b.State().RemainingRequests)

	ctx, cancel := context.WithCancel(context.Background())
	done := b.Start(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return b.State().RemainingRequests == 10
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reset loop did not stop")
	}
}
