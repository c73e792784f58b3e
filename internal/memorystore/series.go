package memorystore

import "sync"

// Series holds the candles of one symbol+timeframe run, strictly increasing by
// Timestamp with no duplicates.
type Series struct {
	mu      sync.RWMutex
	candles []Candle
}

func NewSeries() *Series {
	return &Series{
		candles: make([]Candle, 0),
	}
}

// Merge appends the candles of page that fall at or before endMs and after the
// current last timestamp. It returns the number of candles appended.
//
// The guard only compares against the running maximum, which is enough as long
// as pages are requested in increasing marker order.
func (s *Series) Merge(page []Candle, endMs int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := int64(-1)
	if n := len(s.candles); n > 0 {
		last = s.candles[n-1].Timestamp
	}

	added := 0
	for _, c := range page {
		if c.Timestamp > endMs {
			continue // range cap
		}
		if c.Timestamp <= last {
			continue // page boundary overlap
		}
		s.candles = append(s.candles, c)
		last = c.Timestamp
		added++
	}
	return added
}

// Snapshot returns a copy of the accumulated candles.
func (s *Series) Snapshot() []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make([]Candle, len(s.candles))
	copy(cp, s.candles)
	return cp
}

func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// Last returns the newest candle, if any.
func (s *Series) Last() (Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

func (s *Series) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = s.candles[:0]
}
