package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"klinecollector/internal/collector"
	"klinecollector/internal/memorystore"
	"klinecollector/internal/ratebudget"

	"go.uber.org/zap"
)

const (
	// Bounds of the adjustable request quota.
	MinRequestsPerMinute = 60
	MaxRequestsPerMinute = 2400
)

var (
	ErrRunActive    = errors.New("a collection run is already active")
	ErrNoRun        = errors.New("no active collection run")
	ErrInvalidQuota = fmt.Errorf("max requests per minute must be between %d and %d",
		MinRequestsPerMinute, MaxRequestsPerMinute)
)

// Listener receives every event of the session, across runs.
type Listener interface {
	StateChanged(collector.State)
	StatsUpdated(collector.Stats)
	SeriesUpdated([]memorystore.Candle)
	Logged(collector.LogEntry)
	RateLimitChanged(ratebudget.State)
}

type Options struct {
	// LogCapacity defaults to collector.MaxLogEntries.
	LogCapacity int
	Listeners   []Listener
}

// Session hosts at most one collection run at a time and keeps what the
// operator sees between runs: the console log, the last run's series and
// stats, and the shared rate budget.
type Session struct {
	fetcher collector.Fetcher
	budget  *ratebudget.Budget
	logger  *zap.Logger
	logs    *collector.LogBook

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	run       uint64
	engine    *collector.Engine
	cfg       *collector.Config
	result    *collector.Result
	done      chan struct{}
	listeners []Listener
}

func New(fetcher collector.Fetcher, budget *ratebudget.Budget, logger *zap.Logger, opts Options) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if budget == nil {
		budget = ratebudget.New(ratebudget.DefaultMaxRequestsPerMinute)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		fetcher:   fetcher,
		budget:    budget,
		logger:    logger.Named("session"),
		logs:      collector.NewLogBook(opts.LogCapacity),
		ctx:       ctx,
		cancel:    cancel,
		listeners: append([]Listener(nil), opts.Listeners...),
	}
	budget.OnChange(s.rateLimitChanged)
	return s
}

func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start launches a run of cfg and returns once the run is under way.
func (s *Session) Start(cfg collector.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	if s.activeLocked() {
		s.mu.Unlock()
		return ErrRunActive
	}
	s.run++
	obs := &runObserver{session: s, run: s.run, started: make(chan struct{})}
	engine := collector.New(s.fetcher, s.budget, obs, s.logger)
	done := make(chan struct{})
	s.engine = engine
	s.cfg = &cfg
	s.result = nil
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		res, err := engine.Run(s.ctx, cfg)
		if err != nil {
			s.logger.Error("collection did not start", zap.Error(err))
			res = collector.Result{State: collector.StateFailed, Err: err}
		}
		s.mu.Lock()
		if s.done == done {
			s.result = &res
		}
		s.mu.Unlock()
		s.logger.Info("collection finished",
			zap.String("state", string(res.State)),
			zap.Int("candles", len(res.Series)),
			zap.Error(res.Err))
	}()

	select {
	case <-obs.started:
	case <-done:
	}
	return nil
}

func (s *Session) activeLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) current() *collector.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.activeLocked() {
		return nil
	}
	return s.engine
}

func (s *Session) Pause() error {
	engine := s.current()
	if engine == nil {
		return ErrNoRun
	}
	return engine.Pause()
}

func (s *Session) Resume() error {
	engine := s.current()
	if engine == nil {
		return ErrNoRun
	}
	return engine.Resume()
}

func (s *Session) Cancel() error {
	engine := s.current()
	if engine == nil {
		return ErrNoRun
	}
	if err := engine.Cancel(); err != nil {
		if errors.Is(err, collector.ErrNotActive) {
			return ErrNoRun
		}
		return err
	}
	return nil
}

// Wait blocks until the latest run stops and returns its result.
func (s *Session) Wait(ctx context.Context) (collector.Result, error) {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return collector.Result{}, ErrNoRun
	}

	select {
	case <-done:
	case <-ctx.Done():
		return collector.Result{}, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		// a newer run replaced this one
		return collector.Result{}, ErrRunActive
	}
	return *s.result, nil
}

// Close stops any active run. The session cannot start runs afterwards.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) Estimate(cfg collector.Config) collector.Estimation {
	return collector.Estimate(cfg, s.budget.SafeInterval())
}

func (s *Session) State() collector.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return collector.StateIdle
	}
	return s.engine.State()
}

func (s *Session) Stats() collector.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return collector.Stats{}
	}
	return s.engine.Stats()
}

// Series returns the candles of the latest run, complete or partial.
func (s *Session) Series() []memorystore.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Series()
}

// Config returns the configuration of the latest run.
func (s *Session) Config() (collector.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return collector.Config{}, false
	}
	return *s.cfg, true
}

func (s *Session) Logs() []collector.LogEntry {
	return s.logs.Entries()
}

func (s *Session) ClearLogs() {
	s.logs.Clear()
}

func (s *Session) RateLimit() ratebudget.State {
	return s.budget.State()
}

func (s *Session) UpdateMaxRequests(n int) error {
	if n < MinRequestsPerMinute || n > MaxRequestsPerMinute {
		return ErrInvalidQuota
	}
	s.budget.UpdateMaxRequests(n)
	s.logger.Info("rate limit updated", zap.Int("max_requests_per_minute", n))
	return nil
}

func (s *Session) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Listener(nil), s.listeners...)
}

func (s *Session) isCurrent(run uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run == run
}

func (s *Session) rateLimitChanged(st ratebudget.State) {
	for _, l := range s.snapshotListeners() {
		l.RateLimitChanged(st)
	}
}

// runObserver forwards the events of one run. Events of a replaced run are
// dropped, except log lines, which belong to the session console.
type runObserver struct {
	session *Session
	run     uint64

	once    sync.Once
	started chan struct{}
}

func (o *runObserver) StateChanged(st collector.State) {
	o.once.Do(func() { close(o.started) })
	if !o.session.isCurrent(o.run) {
		return
	}
	for _, l := range o.session.snapshotListeners() {
		l.StateChanged(st)
	}
}

func (o *runObserver) StatsUpdated(stats collector.Stats) {
	if !o.session.isCurrent(o.run) {
		return
	}
	for _, l := range o.session.snapshotListeners() {
		l.StatsUpdated(stats)
	}
}

func (o *runObserver) SeriesUpdated(series []memorystore.Candle) {
	if !o.session.isCurrent(o.run) {
		return
	}
	for _, l := range o.session.snapshotListeners() {
		l.SeriesUpdated(series)
	}
}

func (o *runObserver) Logged(entry collector.LogEntry) {
	o.session.logs.Append(entry)
	for _, l := range o.session.snapshotListeners() {
		l.Logged(entry)
	}
}
