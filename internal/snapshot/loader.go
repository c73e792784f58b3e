package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SymbolLister lists the symbols trading against a quote asset.
type SymbolLister interface {
	Symbols(ctx context.Context, quoteAsset string) ([]string, error)
}

type SymbolLoader struct {
	Client     SymbolLister
	QuoteAsset string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// LoadSymbols fetches the exchange's trading symbols and streams them into ch.
// ch is closed on return so a store worker draining it can exit.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, ch chan<- string) error {
	defer close(ch)

	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	symbols, err := l.Client.Symbols(ctx, l.QuoteAsset)
	if err != nil {
		logger.Error("failed to load symbols", zap.String("quote_asset", l.QuoteAsset), zap.Error(err))
		return err
	}
	logger.Info("loaded symbols", zap.Int("count", len(symbols)))

	for _, symbol := range symbols {
		select {
		case ch <- symbol:
		case <-ctx.Done():
			logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	return nil
}
