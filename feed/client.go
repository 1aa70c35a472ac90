// Package feed is the HTTP client for the market data service: category
// lists, quotes and candle history.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 12 * time.Second

// StatusError is returned for any non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed: status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }
func WithLogger(l *zap.Logger) Option      { return func(c *Client) { c.log = l } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// Category lists the instruments of cat.
func (c *Client) Category(ctx context.Context, cat market.Category) ([]market.Instrument, error) {
	var out []market.Instrument
	if err := c.get(ctx, "/api/markets/"+url.PathEscape(string(cat)), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "category %s", cat)
	}
	return out, nil
}

// Quotes looks up syms in one request.
func (c *Client) Quotes(ctx context.Context, syms []string) ([]market.Instrument, error) {
	if len(syms) == 0 {
		return nil, nil
	}
	q := url.Values{"symbols": {strings.Join(syms, ",")}}
	var out []market.Instrument
	if err := c.get(ctx, "/api/quotes", q, &out); err != nil {
		return nil, errors.Wrapf(err, "quotes %d symbols", len(syms))
	}
	return out, nil
}

func (c *Client) Quote(ctx context.Context, sym string) (market.Instrument, error) {
	var out market.Instrument
	if err := c.get(ctx, "/api/quotes/"+url.PathEscape(sym), nil, &out); err != nil {
		return market.Instrument{}, errors.Wrapf(err, "quote %s", sym)
	}
	if out.Symbol == "" {
		out.Symbol = sym
	}
	return out, nil
}

type historyCandle struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
}

// History fetches up to limit candles of sym at tf, oldest first.
func (c *Client) History(ctx context.Context, sym string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	q := url.Values{"interval": {tf.Interval()}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw []historyCandle
	if err := c.get(ctx, "/api/history/"+url.PathEscape(sym), q, &raw); err != nil {
		return nil, errors.Wrapf(err, "history %s %s", sym, tf)
	}

	out := make([]market.Candle, 0, len(raw))
	for _, h := range raw {
		out = append(out, market.Candle{Time: h.T.UTC(), Open: h.O, High: h.H, Low: h.L, Close: h.C})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	c.log.Debug("feed request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
