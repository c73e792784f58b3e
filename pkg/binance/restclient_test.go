package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRows = `[
	[1672531200000,"16541.77","16545.70","16508.39","16529.67","4364.83570",1672534799999,"72146200.0",102104,"2094.6","34626.6","0"],
	[1672534800000,"16529.59","16556.80","16525.78","16551.47","3590.06669",1672538399999,"59385843.4",83800,"1792.4","29652.7","0"]
]`

// newTestClient points a client at srv and records backoff waits instead of sleeping.
func newTestClient(srv *httptest.Server) (*RESTClient, *[]time.Duration) {
	c := NewRESTClient(srv.URL, 5*time.Second, nil)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

// go test -v --run TestFetchPageQuery
func TestFetchPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "1h", q.Get("interval"))
		assert.Equal(t, "1672531200000", q.Get("startTime"))
		assert.Equal(t, "1000", q.Get("limit"))
		_, _ = w.Write([]byte(twoRows))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	page, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1h, 1672531200000, 1000)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1672531200000), page[0].Timestamp)
	assert.InDelta(t, 16541.77, page[0].Open, 1e-9)
	assert.InDelta(t, 16556.80, page[1].High, 1e-9)
	assert.InDelta(t, 3590.06669, page[1].Volume, 1e-9)
	assert.Empty(t, *waits)
}

// go test -v --run TestFetchPageRetriesRateLimit
func TestFetchPageRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(twoRows))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	page, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1h, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestFetchPageRateLimitNotBoundedByTransientRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 6 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	client.SetMaxBackoff(10 * time.Second)
	page, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1m, 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second,
	}, *waits)
}

func TestFetchPageAPIErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	_, err := client.FetchPage(context.Background(), "NOPE", Timeframe1h, 0, 1000)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Bad Request", apiErr.Status)
	assert.Equal(t, int64(-1121), apiErr.Code)
	assert.Equal(t, "Invalid symbol.", apiErr.Message)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *waits)
}

func TestFetchPageTransientRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	_, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1h, 0, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *waits)
}

func TestFetchPageTransientRecovers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"not":"an array"}`))
			return
		}
		_, _ = w.Write([]byte(twoRows))
	}))
	defer srv.Close()

	client, waits := newTestClient(srv)
	page, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1h, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, []time.Duration{time.Second}, *waits)
}

func TestFetchPageCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchPage(ctx, "BTCUSDT", Timeframe1h, 0, 1000)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchPageClampsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	_, err := client.FetchPage(context.Background(), "BTCUSDT", Timeframe1h, 0, 5000)
	require.NoError(t, err)
}

// go test -v --run TestSymbols
func TestSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","quoteAsset":"USDT"},
			{"symbol":"ETHBTC","status":"TRADING","quoteAsset":"BTC"},
			{"symbol":"LUNAUSDT","status":"BREAK","quoteAsset":"USDT"}
		]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	symbols, err := client.Symbols(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, symbols)

	all, err := client.Symbols(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHBTC"}, all)
}
