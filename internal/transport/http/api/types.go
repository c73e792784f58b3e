package api

import (
	"fmt"
	"strings"
	"time"

	"klinecollector/internal/collector"
	"klinecollector/internal/memorystore"
	"klinecollector/internal/ratebudget"
	"klinecollector/pkg/binance"
)

// Collection is the run control the router drives.
type Collection interface {
	Start(cfg collector.Config) error
	Pause() error
	Resume() error
	Cancel() error
	Estimate(cfg collector.Config) collector.Estimation
	State() collector.State
	Stats() collector.Stats
	Series() []memorystore.Candle
	Config() (collector.Config, bool)
	Logs() []collector.LogEntry
	ClearLogs()
	RateLimit() ratebudget.State
	UpdateMaxRequests(n int) error
}

// SymbolCatalogue lists the symbols a run may be started for.
type SymbolCatalogue interface {
	GetAll() []string
	Contains(symbol string) bool
}

// configRequest is the run configuration as sent by the control UI. Empty
// fields fall back to the configured defaults.
type configRequest struct {
	Symbol    string `json:"symbol" form:"symbol"`
	Timeframe string `json:"timeframe" form:"timeframe"`
	StartDate string `json:"start_date" form:"start"`
	EndDate   string `json:"end_date" form:"end"`
	DelayMs   *int64 `json:"delay_ms" form:"delay_ms"`
}

func (r configRequest) toConfig(defaults collector.Config) (collector.Config, error) {
	cfg := defaults
	if s := strings.ToUpper(strings.TrimSpace(r.Symbol)); s != "" {
		cfg.Symbol = s
	}
	if r.Timeframe != "" {
		tf, err := binance.ParseTimeframe(r.Timeframe)
		if err != nil {
			return cfg, err
		}
		cfg.Timeframe = tf
	}
	if r.StartDate != "" {
		d, err := collector.ParseDate(r.StartDate)
		if err != nil {
			return cfg, fmt.Errorf("start_date: %w", err)
		}
		cfg.StartDate = d
	}
	if r.EndDate != "" {
		d, err := collector.ParseDate(r.EndDate)
		if err != nil {
			return cfg, fmt.Errorf("end_date: %w", err)
		}
		cfg.EndDate = d
	}
	if r.DelayMs != nil {
		cfg.Delay = time.Duration(*r.DelayMs) * time.Millisecond
	}
	return cfg, cfg.Validate()
}

type configResponse struct {
	Symbol    string            `json:"symbol"`
	Timeframe binance.Timeframe `json:"timeframe"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	DelayMs   int64             `json:"delay_ms"`
}

func newConfigResponse(cfg collector.Config) configResponse {
	return configResponse{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		StartDate: cfg.StartDate.Format(collector.DateLayout),
		EndDate:   cfg.EndDate.Format(collector.DateLayout),
		DelayMs:   cfg.Delay.Milliseconds(),
	}
}

type estimateResponse struct {
	Config           configResponse `json:"config"`
	TotalCandles     int64          `json:"totalCandles"`
	TotalRequests    int64          `json:"totalRequests"`
	EffectiveDelayMs int64          `json:"effectiveDelayMs"`
	DurationMs       int64          `json:"durationMs"`
	Minutes          int64          `json:"minutes"`
	Seconds          int64          `json:"seconds"`
}

type collectionResponse struct {
	State    collector.State `json:"state"`
	Config   *configResponse `json:"config"`
	Stats    collector.Stats `json:"stats"`
	Progress float64         `json:"progress"`
	Candles  int             `json:"candles"`
}

type rateLimitRequest struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute" binding:"required"`
}
