package collector

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"klinecollector/internal/memorystore"
	"klinecollector/pkg/binance"
)

// DateLayout is the calendar-date format accepted for start and end dates.
const DateLayout = "2006-01-02"

// Config describes one collection run. It is not modified once a run starts.
type Config struct {
	Symbol    string
	Timeframe binance.Timeframe
	StartDate time.Time // calendar date, UTC
	EndDate   time.Time // calendar date, UTC, included in the range
	Delay     time.Duration
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if !c.Timeframe.IsValid() {
		errs = append(errs, fmt.Errorf("invalid timeframe: %q", c.Timeframe))
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		errs = append(errs, errors.New("start and end dates are required"))
	} else if dayStart(c.EndDate).Before(dayStart(c.StartDate)) {
		errs = append(errs, errors.New("end date is before start date"))
	}
	if c.Delay < 0 {
		errs = append(errs, errors.New("delay must not be negative"))
	}
	return errors.Join(errs...)
}

// Bounds returns the millisecond range of the run. startMs is 00:00:00.000 UTC
// of StartDate and endMs is 23:59:59.999 UTC of EndDate, so the whole end day
// is collected.
func (c Config) Bounds() (startMs, endMs int64) {
	start := dayStart(c.StartDate)
	end := dayStart(c.EndDate).AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli() - 1
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// State is the lifecycle position of an Engine.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether the run has stopped.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Active reports whether a run is in progress, paused or not.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Stats is the progress snapshot published after every page.
// CompletedRequests may exceed TotalRequests, which is only an estimate.
type Stats struct {
	TotalRequests       int    `json:"totalRequests"`
	CompletedRequests   int    `json:"completedRequests"`
	TotalCandles        int    `json:"totalCandles"`
	StartTime           int64  `json:"startTime"`
	LastCandleTimestamp *int64 `json:"lastCandleTimestamp"`
}

// Progress returns completed/total as a percentage, 0 when nothing is expected.
func (s Stats) Progress() float64 {
	if s.TotalRequests <= 0 {
		return 0
	}
	return float64(s.CompletedRequests) / float64(s.TotalRequests) * 100
}

// Result is what a finished run leaves behind.
type Result struct {
	State  State
	Series []memorystore.Candle
	Stats  Stats
	Err    error
}
