package binance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"klinecollector/internal/memorystore"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// maxTransientRetries bounds retries of network and decode failures.
	// Rate-limited responses are retried without a bound.
	maxTransientRetries = 3

	// DefaultMaxBackoff caps a single backoff wait.
	DefaultMaxBackoff = 5 * time.Minute
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	maxBackoff time.Duration
	logger     *zap.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRESTClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBackoff: DefaultMaxBackoff,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// SetMaxBackoff caps the exponential wait between attempts. Zero or negative
// restores the default.
func (c *RESTClient) SetMaxBackoff(d time.Duration) {
	if d <= 0 {
		d = DefaultMaxBackoff
	}
	c.maxBackoff = d
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// FetchPage requests up to limit klines opening at or after startMs, in
// ascending time order.
//
// HTTP 429 is always retried. Other non-2xx statuses return an *APIError
// immediately. Network and decode failures are retried up to three times.
// Attempt n waits 2^n seconds first.
func (c *RESTClient) FetchPage(ctx context.Context, symbol string, tf Timeframe,
	startMs int64, limit int) ([]memorystore.Candle, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	for attempt := 0; ; attempt++ {
		page, err := c.getKlines(ctx, symbol, tf, startMs, limit)
		if err == nil {
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var apiErr *APIError
		wait := c.backoff(attempt)
		switch {
		case errors.As(err, &apiErr) && apiErr.RateLimited():
			c.logger.Warn("rate limit hit, backing off",
				zap.String("symbol", symbol), zap.Int("attempt", attempt), zap.Duration("wait", wait))
		case errors.As(err, &apiErr):
			return nil, err
		case attempt >= maxTransientRetries:
			return nil, fmt.Errorf("fetch klines after %d attempts: %w", attempt+1, err)
		default:
			c.logger.Warn("kline request failed, retrying",
				zap.String("symbol", symbol), zap.Int("attempt", attempt),
				zap.Duration("wait", wait), zap.Error(err))
		}

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *RESTClient) backoff(attempt int) time.Duration {
	if attempt >= 30 {
		return c.maxBackoff
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

func (c *RESTClient) getKlines(ctx context.Context, symbol string, tf Timeframe,
	startMs int64, limit int) ([]memorystore.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", tf.String())
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	klines, err := ParseKlinePage(body)
	if err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}
	return klines, nil
}

// Symbols returns the symbols currently TRADING against quoteAsset. An empty
// quoteAsset returns every trading symbol.
func (c *RESTClient) Symbols(ctx context.Context, quoteAsset string) ([]string, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode exchangeInfo: %w", ErrMalformedResponse)
	}

	var symbols []string
	gjson.GetBytes(body, "symbols").ForEach(func(_, s gjson.Result) bool {
		if s.Get("status").String() != "TRADING" {
			return true
		}
		if quoteAsset != "" && s.Get("quoteAsset").String() != quoteAsset {
			return true
		}
		if name := s.Get("symbol").String(); name != "" {
			symbols = append(symbols, name)
		}
		return true
	})
	return symbols, nil
}

func (c *RESTClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp, body)
	}
	return body, nil
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if status == "" {
		status = http.StatusText(resp.StatusCode)
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: status}
	if gjson.ValidBytes(body) {
		apiErr.Code = gjson.GetBytes(body, "code").Int()
		apiErr.Message = gjson.GetBytes(body, "msg").String()
	}
	return apiErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
