package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/scheduler"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunDeliversTicksAndReconnects(t *testing.T) {
	t.Parallel()

	var (
		upgrader = websocket.Upgrader{}
		conns    atomic.Int32
		subs     = make(chan Subscribe, 4)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub Subscribe
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub

		n := conns.Add(1)
		ts := time.Date(2026, 3, 2, 9, 0, int(n), 0, time.UTC)
		_ = conn.WriteJSON(Message{Symbol: "EURUSD", Price: 1.08 + float64(n)/100, T: ts})
		_ = conn.WriteJSON(Message{Symbol: "EURUSD", Price: -1, T: ts})
		if n == 1 {
			return // drop the first connection
		}
		// hold the second one open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	s := New(wsURL(srv),
		WithToken("tok"),
		WithBackoff(&scheduler.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}),
	)
	require.NoError(t, s.SetSymbols([]string{"EURUSD", "XAUUSD"}))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan market.Tick, 8)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	var got []market.Tick
	for len(got) < 2 {
		select {
		case tk := <-out:
			got = append(got, tk)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}
	assert.InDelta(t, 1.09, got[0].Price, 1e-9)
	assert.InDelta(t, 1.10, got[1].Price, 1e-9, "second connection after reconnect")
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 2, 0, time.UTC), got[1].Time)

	sub := <-subs
	assert.Equal(t, "subscribe", sub.Op)
	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, sub.Symbols)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, out, 0, "invalid prices are dropped")
}

func TestRunRetriesDialFailures(t *testing.T) {
	t.Parallel()

	s := New("ws://127.0.0.1:1/none",
		WithBackoff(&scheduler.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond}),
		WithDialer(&websocket.Dialer{HandshakeTimeout: 50 * time.Millisecond}),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, make(chan market.Tick))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
