package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	n := 0
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	l, err := NewSQLite(path,
		WithIDs(func() string { n++; return fmt.Sprintf("T%02d", n) }),
		WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func ptr(v float64) *float64 { return &v }

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	l, path := newTestSQLite(t)
	require.NoError(t, l.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='trades'`).Scan(&name))
	assert.Equal(t, "trades", name)
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	l, _ := newTestSQLite(t)
	ctx := context.Background()

	created, err := l.Create(ctx, Trade{
		ClientID:   "c1",
		Symbol:     "XAUUSD",
		Side:       market.Sell,
		Volume:     0.5,
		Lot:        100,
		EntryPrice: 2375.123456,
		TakeProfit: ptr(2300),
		Category:   market.Commodities,
		Demo:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "T01", created.ID)
	assert.Equal(t, StatusOpen, created.Status)
	assert.False(t, created.OpenedAt.IsZero())

	got, err := l.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	require.NotNil(t, got.TakeProfit)
	assert.Equal(t, 2300.0, *got.TakeProfit)
	assert.Nil(t, got.StopLoss)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndClose(t *testing.T) {
	t.Parallel()

	l, _ := newTestSQLite(t)
	ctx := context.Background()

	tr, err := l.Create(ctx, Trade{ClientID: "c1", Symbol: "EURUSD", Volume: 1, Lot: 1, EntryPrice: 1.1, Category: market.Forex})
	require.NoError(t, err)

	tr.Volume = 2
	tr.StopLoss = ptr(1.05)
	tr.BrokerID = "b7"
	require.NoError(t, l.Update(ctx, tr))

	at := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	closed, err := l.CloseTrade(ctx, tr.ID, 1.2, at)
	require.NoError(t, err)
	assert.True(t, closed.Closed())
	assert.Equal(t, 1.2, closed.ClosePrice)
	assert.Equal(t, at, closed.ClosedAt)
	assert.Equal(t, 2.0, closed.Volume)
	assert.Equal(t, "b7", closed.BrokerID)

	_, err = l.CloseTrade(ctx, tr.ID, 1.3, at)
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	assert.ErrorIs(t, l.Update(ctx, tr), ErrAlreadyClosed)

	_, err = l.CloseTrade(ctx, "nope", 1, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByClientAndBroker(t *testing.T) {
	t.Parallel()

	l, _ := newTestSQLite(t)
	ctx := context.Background()

	for _, c := range []struct{ client, broker string }{
		{"c1", "b1"}, {"c2", "b1"}, {"c1", "b2"},
	} {
		_, err := l.Create(ctx, Trade{ClientID: c.client, BrokerID: c.broker, Symbol: "BTCUSD", Volume: 1, Lot: 1, EntryPrice: 60000, Category: market.Crypto})
		require.NoError(t, err)
	}

	mine, err := l.ListByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "T03", mine[0].ID, "newest first")
	assert.Equal(t, "T01", mine[1].ID)

	desk, err := l.ListByBroker(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, desk, 2)

	none, err := l.ListByClient(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
