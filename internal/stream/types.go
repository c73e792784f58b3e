package stream

import "encoding/json"

// Event types sent to progress feed clients.
const (
	EventState     = "state"
	EventStats     = "stats"
	EventSeries    = "series"
	EventLog       = "log"
	EventRateLimit = "ratelimit"
)

// Event is one message on the progress feed.
type Event struct {
	Type string          `json:"type"`
	Ts   int64           `json:"ts"` // server time (milliseconds) the event was published
	Data json.RawMessage `json:"data"`
}

// SeriesSummary stands in for the full series, which is fetched through export.
type SeriesSummary struct {
	Count          int    `json:"count"`
	FirstTimestamp *int64 `json:"firstTimestamp"`
	LastTimestamp  *int64 `json:"lastTimestamp"`
}
