package binance

import (
	"fmt"
	"strings"
	"time"
)

// MaxKlineLimit is the largest page the klines endpoint returns.
const MaxKlineLimit = 1000

// DefaultBaseURL is the public spot REST host.
const DefaultBaseURL = "https://api.binance.com"

// DefaultSymbols seeds the symbol catalogue before exchangeInfo has been read.
var DefaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "DOTUSDT", "LINKUSDT",
}

// Timeframe is the kline interval sent as the `interval` query parameter.
type Timeframe string

// TimeframeMeta holds the display label and period length of a Timeframe.
type TimeframeMeta struct {
	Value    Timeframe     `json:"value"`
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

const (
	Timeframe1m Timeframe = "1m"
	Timeframe5m Timeframe = "5m"
	Timeframe1h Timeframe = "1h"
	Timeframe1d Timeframe = "1d"
)

// timeframes is ordered for display.
var timeframes = []TimeframeMeta{
	{Value: Timeframe1m, Label: "1 Minute", Duration: time.Minute},
	{Value: Timeframe5m, Label: "5 Minutes", Duration: 5 * time.Minute},
	{Value: Timeframe1h, Label: "1 Hour", Duration: time.Hour},
	{Value: Timeframe1d, Label: "1 Day", Duration: 24 * time.Hour},
}

func lookup(tf Timeframe) (TimeframeMeta, bool) {
	for _, meta := range timeframes {
		if meta.Value == tf {
			return meta, true
		}
	}
	return TimeframeMeta{}, false
}

// IsValid checks if the Timeframe is one of the supported intervals.
func (tf Timeframe) IsValid() bool {
	_, ok := lookup(tf)
	return ok
}

// Duration returns the period length, or zero for an unsupported Timeframe.
func (tf Timeframe) Duration() time.Duration {
	meta, _ := lookup(tf)
	return meta.Duration
}

// Millis returns the period length in milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration().Milliseconds()
}

func (tf Timeframe) String() string {
	return string(tf)
}

// ParseTimeframe parses a string such as "1h" into a supported Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if !tf.IsValid() {
		return "", fmt.Errorf("invalid timeframe: %q", s)
	}
	return tf, nil
}

// Timeframes lists the supported intervals in display order.
func Timeframes() []TimeframeMeta {
	out := make([]TimeframeMeta, len(timeframes))
	copy(out, timeframes)
	return out
}
