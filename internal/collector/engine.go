package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"klinecollector/internal/memorystore"
	"klinecollector/pkg/binance"

	"go.uber.org/zap"
)

const (
	// PageLimit is the number of candles requested per page.
	PageLimit = binance.MaxKlineLimit

	// publishEvery is how many pages pass between series snapshots.
	publishEvery = 5
)

var (
	ErrNotIdle    = errors.New("collection already started")
	ErrNotRunning = errors.New("collection is not running")
	ErrNotPaused  = errors.New("collection is not paused")
	ErrNotActive  = errors.New("collection is not active")
	errCancelled  = errors.New("collection cancelled")
	errNoProgress = errors.New("page did not advance the start marker")
)

// Fetcher returns one page of candles starting at startMs.
type Fetcher interface {
	FetchPage(ctx context.Context, symbol string, tf binance.Timeframe, startMs int64, limit int) ([]memorystore.Candle, error)
}

// Budget is the shared request quota consulted before every page.
type Budget interface {
	TrackRequest()
	SafeInterval() time.Duration
}

// Observer receives progress from a run. Calls are made from the run goroutine
// and from whichever goroutine calls Pause, Resume or Cancel.
type Observer interface {
	StateChanged(State)
	StatsUpdated(Stats)
	SeriesUpdated([]memorystore.Candle)
	Logged(LogEntry)
}

// Engine walks one date range page by page. An Engine runs once; create a new
// one for every run.
type Engine struct {
	fetcher  Fetcher
	budget   Budget
	observer Observer
	logger   *zap.Logger

	series *memorystore.Series

	mu         sync.Mutex
	state      State
	stats      Stats
	wake       chan struct{} // closed and replaced on every state change
	abortFetch context.CancelFunc
}

func New(fetcher Fetcher, budget Budget, observer Observer, logger *zap.Logger) *Engine {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher:  fetcher,
		budget:   budget,
		observer: observer,
		logger:   logger,
		series:   memorystore.NewSeries(),
		state:    StateIdle,
		wake:     make(chan struct{}),
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Series returns a copy of the candles collected so far.
func (e *Engine) Series() []memorystore.Candle {
	return e.series.Snapshot()
}

// Run collects cfg's range and blocks until the run stops. The returned error
// is only set when the run could not start; how the run ended is in Result.
func (e *Engine) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid config: %w", err)
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return Result{}, ErrNotIdle
	}
	est := Estimate(cfg, e.budget.SafeInterval())
	e.stats = Stats{
		TotalRequests: int(est.TotalRequests),
		StartTime:     time.Now().UnixMilli(),
	}
	stats := e.stats
	e.mu.Unlock()

	e.transition(StateRunning)
	e.observer.StatsUpdated(stats)
	e.log(LevelSuccess, fmt.Sprintf("Starting collection for %s (%s)", cfg.Symbol, cfg.Timeframe))
	e.logger.Info("collection started",
		zap.String("symbol", cfg.Symbol),
		zap.String("timeframe", cfg.Timeframe.String()),
		zap.Int64("estimated_candles", est.TotalCandles),
		zap.Int64("estimated_requests", est.TotalRequests))

	err := e.collect(ctx, cfg)

	series := e.series.Snapshot()
	e.observer.SeriesUpdated(series)

	var final State
	switch {
	case err == nil:
		e.log(LevelSuccess, fmt.Sprintf("Collection completed. Total candles: %d", len(series)))
		final = StateCompleted
	case errors.Is(err, errCancelled):
		// already logged by Cancel
		final = StateCancelled
		err = nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		e.log(LevelWarn, fmt.Sprintf("Collection stopped: %v", err))
		final = StateCancelled
	default:
		e.log(LevelError, fmt.Sprintf("Error during collection: %v", err))
		final = StateFailed
	}
	e.transition(final)

	return Result{
		State:  final,
		Series: series,
		Stats:  e.Stats(),
		Err:    err,
	}, nil
}

func (e *Engine) collect(ctx context.Context, cfg Config) error {
	startMs, endMs := cfg.Bounds()
	interval := cfg.Timeframe.Millis()

	for marker := startMs; marker <= endMs; {
		if err := e.waitTurn(ctx, cfg.Delay); err != nil {
			return err
		}

		fetchCtx, abort := context.WithCancel(ctx)
		if !e.beginFetch(abort) {
			// paused or cancelled after the throttle; re-check at the top
			abort()
			continue
		}
		e.budget.TrackRequest()
		page, err := e.fetcher.FetchPage(fetchCtx, cfg.Symbol, cfg.Timeframe, marker, PageLimit)
		cancelled := e.endFetch()
		abort()

		if cancelled {
			return errCancelled
		}
		if err != nil {
			return err
		}
		if len(page) == 0 {
			e.logger.Info("no more data from exchange", zap.Int64("marker", marker))
			return nil
		}

		e.series.Merge(page, endMs)
		stats := e.recordPage()
		e.observer.StatsUpdated(stats)

		short := len(page) < PageLimit
		if stats.CompletedRequests%publishEvery == 0 || short {
			e.observer.SeriesUpdated(e.series.Snapshot())
			e.log(LevelInfo, fmt.Sprintf("Fetched %d candles...", stats.TotalCandles))
		}

		next := page[len(page)-1].Timestamp + interval
		if next <= marker {
			return fmt.Errorf("%w: marker=%d next=%d", errNoProgress, marker, next)
		}
		marker = next
		if short {
			return nil
		}
	}
	return nil
}

func (e *Engine) recordPage() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.CompletedRequests++
	e.stats.TotalCandles = e.series.Len()
	if last, ok := e.series.Last(); ok {
		ts := last.Timestamp
		e.stats.LastCandleTimestamp = &ts
	}
	return e.stats
}

// waitTurn blocks until the engine is running and the throttle delay has
// elapsed without a state change. A pause during the delay holds the next
// request until resume; a cancel returns at once.
func (e *Engine) waitTurn(ctx context.Context, delay time.Duration) error {
	for {
		wake, err := e.waitRunning(ctx)
		if err != nil {
			return err
		}

		timer := time.NewTimer(max(delay, e.budget.SafeInterval()))
		select {
		case <-timer.C:
			return nil
		case <-wake:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// waitRunning returns once the state is running, with the wake channel that
// will be closed on the next state change.
func (e *Engine) waitRunning(ctx context.Context) (<-chan struct{}, error) {
	for {
		e.mu.Lock()
		state, wake := e.state, e.wake
		e.mu.Unlock()

		switch state {
		case StateRunning:
			return wake, nil
		case StatePaused:
			select {
			case <-wake:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			return nil, errCancelled
		}
	}
}

func (e *Engine) beginFetch(abort context.CancelFunc) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return false
	}
	e.abortFetch = abort
	return true
}

// endFetch reports whether the run was cancelled while the page was in flight.
func (e *Engine) endFetch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortFetch = nil
	return e.state == StateCancelled
}

// Pause stops the run before its next request. A request already in flight
// completes and is merged.
func (e *Engine) Pause() error {
	if !e.swap(StateRunning, StatePaused) {
		return ErrNotRunning
	}
	e.log(LevelInfo, "Collection paused.")
	return nil
}

func (e *Engine) Resume() error {
	if !e.swap(StatePaused, StateRunning) {
		return ErrNotPaused
	}
	e.log(LevelInfo, "Collection resumed.")
	return nil
}

// Cancel stops the run. A request in flight is aborted and its page dropped,
// so the series keeps exactly the pages completed before the call.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if !e.state.Active() {
		e.mu.Unlock()
		return ErrNotActive
	}
	e.setStateLocked(StateCancelled)
	if e.abortFetch != nil {
		e.abortFetch()
	}
	e.mu.Unlock()

	e.observer.StateChanged(StateCancelled)
	e.log(LevelWarn, "Collection stopped by user.")
	return nil
}

func (e *Engine) swap(from, to State) bool {
	e.mu.Lock()
	if e.state != from {
		e.mu.Unlock()
		return false
	}
	e.setStateLocked(to)
	e.mu.Unlock()

	e.observer.StateChanged(to)
	return true
}

func (e *Engine) transition(to State) {
	e.mu.Lock()
	changed := e.state != to
	if changed {
		e.setStateLocked(to)
	}
	e.mu.Unlock()

	if changed {
		e.observer.StateChanged(to)
	}
}

func (e *Engine) setStateLocked(to State) {
	e.state = to
	close(e.wake)
	e.wake = make(chan struct{})
}

func (e *Engine) log(level Level, msg string) {
	entry := NewLogEntry(level, msg)
	switch level {
	case LevelError:
		e.logger.Error(msg)
	case LevelWarn:
		e.logger.Warn(msg)
	default:
		e.logger.Info(msg, zap.String("level_tag", string(level)))
	}
	e.observer.Logged(entry)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)                 {}
func (nopObserver) StatsUpdated(Stats)                 {}
func (nopObserver) SeriesUpdated([]memorystore.Candle) {}
func (nopObserver) Logged(LogEntry)                    {}
