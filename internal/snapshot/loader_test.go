package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"klinecollector/internal/memorystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerFunc func(ctx context.Context, quoteAsset string) ([]string, error)

func (f listerFunc) Symbols(ctx context.Context, quoteAsset string) ([]string, error) {
	return f(ctx, quoteAsset)
}

// go test -v --run TestLoadSymbolsFeedsStore
func TestLoadSymbolsFeedsStore(t *testing.T) {
	var gotQuote string
	loader := &SymbolLoader{
		Client: listerFunc(func(_ context.Context, quote string) ([]string, error) {
			gotQuote = quote
			return []string{"BTCUSDT", "ethusdt", "SOLUSDT"}, nil
		}),
		QuoteAsset: "USDT",
		Timeout:    time.Second,
	}

	store := memorystore.NewSymbolStore("BTCUSDT")
	ch := make(chan string)
	done := store.StartWorker(ch)

	require.NoError(t, loader.LoadSymbols(context.Background(), ch))
	<-done

	assert.Equal(t, "USDT", gotQuote)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, store.GetAll())
}

func TestLoadSymbolsErrorClosesChannel(t *testing.T) {
	boom := errors.New("exchange unavailable")
	loader := &SymbolLoader{
		Client: listerFunc(func(context.Context, string) ([]string, error) { return nil, boom }),
	}

	ch := make(chan string, 1)
	assert.ErrorIs(t, loader.LoadSymbols(context.Background(), ch), boom)
	_, open := <-ch
	assert.False(t, open)
}

func TestLoadSymbolsStopsOnCancel(t *testing.T) {
	loader := &SymbolLoader{
		Client: listerFunc(func(context.Context, string) ([]string, error) {
			return []string{"A", "B"}, nil
		}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// nobody reads ch, so the send can only end through ctx
	ch := make(chan string)
	assert.ErrorIs(t, loader.LoadSymbols(ctx, ch), context.Canceled)
}
