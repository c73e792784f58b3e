package ratebudget

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMaxRequestsPerMinute mirrors the exchange's default weight budget.
	DefaultMaxRequestsPerMinute = 1200

	// DefaultWindow is the fixed period after which the request counter resets.
	DefaultWindow = time.Minute
)

// State is a point-in-time copy of the budget counters.
type State struct {
	RequestsInWindow     int   `json:"requestsInWindow"`
	MaxRequestsPerMinute int   `json:"maxRequestsPerMinute"`
	RemainingRequests    int   `json:"remainingRequests"`
	SafeIntervalMs       int64 `json:"safeIntervalMs"`
}

// Budget tracks requests against a fixed one-minute quota. The window is reset
// on a fixed period, not slid, so a burst right before a reset is not smoothed.
type Budget struct {
	mu    sync.Mutex
	state State

	onChange func(State)
}

func New(maxRequestsPerMinute int) *Budget {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = DefaultMaxRequestsPerMinute
	}
	return &Budget{
		state: State{
			MaxRequestsPerMinute: maxRequestsPerMinute,
			RemainingRequests:    maxRequestsPerMinute,
			SafeIntervalMs:       safeIntervalMs(maxRequestsPerMinute),
		},
	}
}

// safeIntervalMs is ceil(60000 / max).
func safeIntervalMs(max int) int64 {
	m := int64(max)
	return (60_000 + m - 1) / m
}

// OnChange registers fn to receive a copy of the state after every mutation.
// fn is called outside the budget lock.
func (b *Budget) OnChange(fn func(State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// TrackRequest counts one request in the current window.
func (b *Budget) TrackRequest() {
	b.update(func(s *State) {
		s.RequestsInWindow++
		s.RemainingRequests = max(0, s.MaxRequestsPerMinute-s.RequestsInWindow)
	})
}

// UpdateMaxRequests changes the quota. Remaining capacity is recomputed without
// clamping, so it goes negative when the window already exceeds the new cap.
// Non-positive values are ignored.
func (b *Budget) UpdateMaxRequests(newMax int) {
	if newMax <= 0 {
		return
	}
	b.update(func(s *State) {
		s.MaxRequestsPerMinute = newMax
		s.SafeIntervalMs = safeIntervalMs(newMax)
		s.RemainingRequests = newMax - s.RequestsInWindow
	})
}

// ResetWindow starts a new window.
func (b *Budget) ResetWindow() {
	b.update(func(s *State) {
		s.RequestsInWindow = 0
		s.RemainingRequests = s.MaxRequestsPerMinute
	})
}

func (b *Budget) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SafeInterval is the minimum spacing between requests that stays under quota.
func (b *Budget) SafeInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.state.SafeIntervalMs) * time.Millisecond
}

func (b *Budget) update(fn func(*State)) {
	b.mu.Lock()
	fn(&b.state)
	snapshot, hook := b.state, b.onChange
	b.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
}

// Start resets the window every period until ctx is done. It returns
// immediately; the returned channel is closed when the reset loop exits.
func (b *Budget) Start(ctx context.Context, period time.Duration) <-chan struct{} {
	if period <= 0 {
		period = DefaultWindow
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.ResetWindow()
			}
		}
	}()
	return done
}
