package snapshot

import (
	"context"
	"time"

	"klinecollector/internal/memorystore"

	"go.uber.org/zap"
)

// MidnightRefresher reloads the symbol catalogue at startup and then at every
// UTC midnight, when the exchange lists or delists pairs.
type MidnightRefresher struct {
	Loader *SymbolLoader
	Store  *memorystore.MemorySymbolStore
	Logger *zap.Logger

	// untilNext returns the wait before the next reload; nil means next UTC midnight.
	untilNext func(now time.Time) time.Duration
}

// Run blocks until ctx is done. A failed reload keeps the current catalogue.
func (m *MidnightRefresher) Run(ctx context.Context) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	untilNext := m.untilNext
	if untilNext == nil {
		untilNext = untilMidnight
	}

	for {
		if err := m.refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("symbol refresh failed", zap.Error(err))
		}

		timer := time.NewTimer(untilNext(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (m *MidnightRefresher) refresh(ctx context.Context) error {
	ch := make(chan string, 100)
	done := m.Store.StartWorker(ch)
	err := m.Loader.LoadSymbols(ctx, ch)
	<-done
	return err
}

func untilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now)
}
