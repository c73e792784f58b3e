package memorystore

import "time"

// Candle is one OHLCV period as returned by the exchange kline endpoint.
// Values are never mutated once a Candle has been produced.
type Candle struct {
	Timestamp int64   `json:"timestamp"` // period open time (milliseconds since epoch)
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the period open time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}
