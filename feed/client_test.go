package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/candles"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/quotes"
)

var (
	_ quotes.Source         = (*Client)(nil)
	_ quotes.BatchSource    = (*Client)(nil)
	_ candles.HistorySource = (*Client)(nil)
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /api/markets/{category}", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("category") != "forex" {
			http.Error(w, "unknown category", http.StatusNotFound)
			return
		}
		writeJSON(w, []market.Instrument{
			{Symbol: "FX:EURUSD", Name: "Euro", Bid: 1.0849, Ask: 1.0851},
			{Symbol: "GBPUSD", Price: 1.27},
		})
	}))
	mux.HandleFunc("GET /api/quotes", auth(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EURUSD,XAUUSD", r.URL.Query().Get("symbols"))
		writeJSON(w, []market.Instrument{{Symbol: "EURUSD", Price: 1.09}, {Symbol: "XAUUSD", Price: 2380}})
	}))
	mux.HandleFunc("GET /api/quotes/{symbol}", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"bid": 99.5, "ask": 100.5})
	}))
	mux.HandleFunc("GET /api/history/{symbol}", auth(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSD", r.PathValue("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"t":"2026-03-02T09:00:00Z","o":1,"h":3,"l":0.5,"c":2},
			{"t":"2026-03-02T10:00:00+01:00","o":2,"h":4,"l":1.5,"c":3}
		]`))
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCategory(t *testing.T) {
	t.Parallel()

	c := NewClient(newServer(t).URL+"/", "secret")
	items, err := c.Category(context.Background(), market.Forex)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "FX:EURUSD", items[0].Symbol)

	p, ok := items[0].InferPrice()
	assert.True(t, ok)
	assert.InDelta(t, 1.085, p, 1e-9)

	_, err = c.Category(context.Background(), market.Stocks)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestQuotes(t *testing.T) {
	t.Parallel()

	c := NewClient(newServer(t).URL, "secret")
	items, err := c.Quotes(context.Background(), []string{"EURUSD", "XAUUSD"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	none, err := c.Quotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	one, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", one.Symbol, "symbol defaults to the requested one")
	p, _ := one.InferPrice()
	assert.Equal(t, 100.0, p)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	c := NewClient(newServer(t).URL, "secret")
	got, err := c.History(context.Background(), "BTCUSD", market.H1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), got[0].Time)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), got[1].Time, "normalized to UTC")
	assert.Equal(t, 3.0, got[1].Close)
}

func TestUnauthorized(t *testing.T) {
	t.Parallel()

	c := NewClient(newServer(t).URL, "wrong")
	_, err := c.Quote(context.Background(), "EURUSD")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Contains(t, err.Error(), "quote EURUSD")
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewClient(srv.URL, "", WithTimeout(20*time.Millisecond))
	_, err := c.Quote(context.Background(), "EURUSD")
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
