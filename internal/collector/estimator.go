package collector

import "time"

// Estimation is the pre-run forecast shown next to the configuration form.
type Estimation struct {
	TotalCandles   int64         `json:"totalCandles"`
	TotalRequests  int64         `json:"totalRequests"`
	EffectiveDelay time.Duration `json:"-"`
	Duration       time.Duration `json:"-"`
}

// Estimate computes the expected candle count, request count and wall-clock
// duration of a run. The candle count is floor(span/interval) where span runs
// from the start of StartDate to the start of the day after EndDate.
func Estimate(cfg Config, safeInterval time.Duration) Estimation {
	startMs, endMs := cfg.Bounds()
	interval := cfg.Timeframe.Millis()

	var candles int64
	if interval > 0 {
		span := max(0, endMs+1-startMs)
		candles = span / interval
	}
	requests := (candles + PageLimit - 1) / PageLimit
	delay := max(cfg.Delay, safeInterval)

	return Estimation{
		TotalCandles:   candles,
		TotalRequests:  requests,
		EffectiveDelay: delay,
		Duration:       time.Duration(requests) * delay,
	}
}

// Minutes is the whole-minute part of Duration.
func (e Estimation) Minutes() int64 {
	return int64(e.Duration / time.Minute)
}

// Seconds is the whole-second remainder of Duration after Minutes.
func (e Estimation) Seconds() int64 {
	return int64(e.Duration % time.Minute / time.Second)
}
