// Package upstox is a minimal client for the Upstox v3 candle history API.
package upstox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sma-vol-breakdown/internal/model"
)

const defaultBaseURL = "https://api.upstox.com"

// Config configures a Client.
type Config struct {
	AccessToken string
	BaseURL     string        // default: https://api.upstox.com
	Timeout     time.Duration // default: 15s

	// Breaker settings; defaults 5 failures, 30s cool-down.
	MaxFailures  int
	ResetTimeout time.Duration

	HTTPClient *http.Client // optional, overrides Timeout
}

// Client fetches candles over HTTP with bearer-token auth.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	breaker *Breaker
}

// APIError is a non-2xx response from Upstox.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstox: http %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying later (429 or 5xx).
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient builds a client. An empty token is allowed; requests will fail with 401.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	b := NewBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	b.OnStateChange = func(from, to State) {
		log.Printf("[upstox] circuit breaker %s -> %s", from, to)
	}

	return &Client{
		token:   cfg.AccessToken,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		breaker: b,
	}
}

// Breaker exposes the client's circuit breaker, mainly for health reporting.
func (c *Client) Breaker() *Breaker { return c.breaker }

// HistoricalCandles fetches completed candles between from and to (YYYY-MM-DD, inclusive).
func (c *Client) HistoricalCandles(ctx context.Context, instrumentKey, unit string, interval int, to, from string) ([]model.Candle, error) {
	p := fmt.Sprintf("/v3/historical-candle/%s/%s/%d/%s/%s",
		url.PathEscape(instrumentKey), url.PathEscape(unit), interval, to, from)
	return c.candles(ctx, p)
}

// IntradayCandles fetches the current session's candles.
func (c *Client) IntradayCandles(ctx context.Context, instrumentKey, unit string, interval int) ([]model.Candle, error) {
	p := fmt.Sprintf("/v3/historical-candle/intraday/%s/%s/%d",
		url.PathEscape(instrumentKey), url.PathEscape(unit), interval)
	return c.candles(ctx, p)
}

type candleResponse struct {
	Status string `json:"status"`
	Data   struct {
		Candles [][]json.RawMessage `json:"candles"`
	} `json:"data"`
}

func (c *Client) candles(ctx context.Context, path string) ([]model.Candle, error) {
	var (
		body    []byte
		callErr error
	)
	// Only transport failures, 429 and 5xx count against the breaker.
	err := c.breaker.Execute(func() error {
		body, callErr = c.get(ctx, path)
		var apiErr *APIError
		if callErr != nil && errors.As(callErr, &apiErr) && !apiErr.Temporary() {
			return nil
		}
		if callErr != nil && errors.Is(callErr, context.Canceled) {
			return nil
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, callErr
	}

	var resp candleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("upstox: decode %s: %w", path, err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("upstox: %s returned status %q", path, resp.Status)
	}

	out := make([]model.Candle, 0, len(resp.Data.Candles))
	for i, row := range resp.Data.Candles {
		cd, err := decodeCandle(row)
		if err != nil {
			return nil, fmt.Errorf("upstox: candle %d: %w", i, err)
		}
		out = append(out, cd)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstox: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstox: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

// decodeCandle reads [ts, open, high, low, close, volume, oi?].
func decodeCandle(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var raw string
	if err := json.Unmarshal(row[0], &raw); err != nil {
		return model.Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return model.Candle{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}

	var v [5]float64
	for i := range v {
		if err := json.Unmarshal(row[i+1], &v[i]); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}

	cd := model.Candle{TS: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}
	if len(row) > 6 && string(row[6]) != "null" {
		var oi float64
		if err := json.Unmarshal(row[6], &oi); err != nil {
			return model.Candle{}, fmt.Errorf("open interest: %w", err)
		}
		cd.OpenInterest = &oi
	}
	return cd, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
