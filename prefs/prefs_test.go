package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/store"
	"github.com/rustyeddy/tradedesk/watchlist"
)

var _ watchlist.ExtrasStore = (*Store)(nil)

func TestExtras(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(store.NewMemory())

	keys, err := s.LoadExtras(ctx, market.Forex)
	require.NoError(t, err)
	assert.Nil(t, keys)

	require.NoError(t, s.SaveExtras(ctx, market.Forex, []string{"USDSEK", "EURNOK"}))
	require.NoError(t, s.SaveExtras(ctx, market.Crypto, []string{"DOGEUSDT"}))

	keys, err = s.LoadExtras(ctx, market.Forex)
	require.NoError(t, err)
	assert.Equal(t, []string{"USDSEK", "EURNOK"}, keys)

	require.NoError(t, s.SaveExtras(ctx, market.Forex, nil))
	keys, err = s.LoadExtras(ctx, market.Forex)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCorruptExtras(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Put(ctx, "extras:forex", []byte("{not json")))

	_, err := New(kv).LoadExtras(ctx, market.Forex)
	assert.Error(t, err)
}

func TestViewState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)

	_, ok, err := s.LoadView(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := ViewState{
		Category:        market.Commodities,
		Symbol:          "XAUUSD",
		Timeframe:       market.H1,
		CandlesOnScreen: 120,
		PanOffset:       14,
		Tabs:            []string{"XAUUSD", "EURUSD"},
		BalanceMode:     BalanceDemo,
	}
	require.NoError(t, s.SaveView(ctx, want))

	got, ok, err := s.LoadView(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	raw, err := kv.Get(ctx, "view")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timeframe":"H1"`)
}
