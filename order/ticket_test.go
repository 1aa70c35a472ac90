package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/market"
)

type fakeTrades struct {
	created []ledger.Trade
	err     error
}

func (f *fakeTrades) Create(_ context.Context, t ledger.Trade) (ledger.Trade, error) {
	if f.err != nil {
		return ledger.Trade{}, f.err
	}
	t.ID = "T1"
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeTrades) Update(context.Context, ledger.Trade) error { return nil }

func (f *fakeTrades) CloseTrade(context.Context, string, float64, time.Time) (ledger.Trade, error) {
	return ledger.Trade{}, nil
}

func (f *fakeTrades) ListByClient(context.Context, string) ([]ledger.Trade, error) { return nil, nil }
func (f *fakeTrades) ListByBroker(context.Context, string) ([]ledger.Trade, error) { return nil, nil }

func newTicket(prices priceMap, svc *fakeTrades, balance float64) *Ticket {
	return NewTicket(svc, prices,
		WithClientID("c1"),
		WithAccount(Account{Real: balance, Demo: 100000}),
		WithLotSizes(LotSizes{market.Commodities: 100}),
	)
}

func TestTicketOpenLocksPrice(t *testing.T) {
	t.Parallel()

	prices := priceMap{"EURUSD": 1.1}
	tk := newTicket(prices, &fakeTrades{}, 1000)
	assert.Equal(t, Closed, tk.State())

	require.NoError(t, tk.Open(market.Instrument{Symbol: "EURUSD"}, market.Forex, market.Buy))
	s := tk.Summary()
	assert.Equal(t, Open, s.State)
	assert.Equal(t, 1.1, s.Draft.LockedPrice)
	assert.Equal(t, RelockWindow, s.Remaining)
	assert.Equal(t, VolumeStep, s.Draft.Volume)

	prices["EURUSD"] = 1.2
	assert.Equal(t, 1.1, tk.Summary().Reference, "locked price wins over live")

	require.NoError(t, tk.SetSide(market.Sell))
	s = tk.Summary()
	assert.Equal(t, market.Sell, s.Draft.Side)
	assert.Equal(t, 1.2, s.Draft.LockedPrice, "switching side relocks")
}

func TestTicketCountdownRelocks(t *testing.T) {
	t.Parallel()

	prices := priceMap{"BTCUSD": 60000}
	tk := newTicket(prices, &fakeTrades{}, 1e6)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "BTCUSD"}, market.Crypto, market.Buy))

	prices["BTCUSD"] = 61000
	for i := 1; i < int(RelockWindow/time.Second); i++ {
		assert.False(t, tk.Tick())
	}
	assert.Equal(t, time.Second, tk.Summary().Remaining)
	assert.Equal(t, 60000.0, tk.Summary().Draft.LockedPrice)

	assert.True(t, tk.Tick())
	s := tk.Summary()
	assert.Equal(t, 61000.0, s.Draft.LockedPrice)
	assert.Equal(t, RelockWindow, s.Remaining)

	tk.Close()
	assert.False(t, tk.Tick(), "closed tickets do not count down")
}

func TestTicketVolumeClamp(t *testing.T) {
	t.Parallel()

	tk := newTicket(priceMap{"AAPL": 100}, &fakeTrades{}, 50)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "AAPL"}, market.Stocks, market.Buy))

	v, insufficient, err := tk.SetVolume(0.75)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	assert.True(t, insufficient)

	v, insufficient, err = tk.SetVolume(0.3)
	require.NoError(t, err)
	assert.Equal(t, 0.3, v)
	assert.False(t, insufficient)

	s := tk.Summary()
	assert.Equal(t, 30.0, s.Margin)
	assert.Equal(t, 0.5, s.MaxVolume)
	assert.True(t, s.HasMax)

	// 0.5 buys less than one step of AAPL at 100.
	svc := &fakeTrades{}
	poor := newTicket(priceMap{"AAPL": 100}, svc, 0.5)
	require.NoError(t, poor.Open(market.Instrument{Symbol: "AAPL"}, market.Stocks, market.Buy))
	v, insufficient, err = poor.SetVolume(0.05)
	require.NoError(t, err)
	assert.Equal(t, VolumeStep, v, "volume never drops below one step")
	assert.True(t, insufficient)

	_, err = poor.Submit(context.Background())
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, svc.created)
	assert.Equal(t, Open, poor.State())
}

func TestTicketSubmitRejectsZeroVolume(t *testing.T) {
	t.Parallel()

	svc := &fakeTrades{}
	tk := newTicket(priceMap{"AAPL": 100}, svc, 1000)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "AAPL"}, market.Stocks, market.Buy))
	tk.mu.Lock()
	tk.draft.Volume = 0
	tk.mu.Unlock()

	_, err := tk.Submit(context.Background())
	require.ErrorIs(t, err, ErrVolume)
	assert.Empty(t, svc.created)
	assert.Equal(t, Open, tk.State())
}

func TestTicketSubmit(t *testing.T) {
	t.Parallel()

	svc := &fakeTrades{}
	tk := newTicket(priceMap{"XAUUSD": 2375.1234567}, svc, 1e6)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "XAUUSD"}, market.Commodities, market.Sell))
	_, _, err := tk.SetVolume(0.05)
	require.NoError(t, err)
	tp := 2300.12345678
	require.NoError(t, tk.SetTakeProfit(&tp))

	trade, err := tk.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", trade.ID)
	assert.Equal(t, "c1", trade.ClientID)
	assert.Equal(t, 2375.123457, trade.EntryPrice)
	require.NotNil(t, trade.TakeProfit)
	assert.Equal(t, 2300.123457, *trade.TakeProfit)
	assert.Nil(t, trade.StopLoss)
	assert.Equal(t, 100.0, trade.Lot)
	assert.Equal(t, market.Sell, trade.Side)
	assert.Equal(t, Closed, tk.State())
}

func TestTicketSubmitRejectedLocally(t *testing.T) {
	t.Parallel()

	svc := &fakeTrades{}
	tk := newTicket(priceMap{"XAUUSD": 2000}, svc, 100)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "XAUUSD"}, market.Commodities, market.Buy))

	_, err := tk.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Empty(t, svc.created, "no network call")
	assert.Equal(t, Open, tk.State())
	assert.True(t, tk.Summary().Insufficient)

	require.NoError(t, tk.SetDemo(true))
	assert.False(t, tk.Summary().Insufficient)
	_, err = tk.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, svc.created, 1)
	assert.True(t, svc.created[0].Demo)
}

func TestTicketSubmitNoPrice(t *testing.T) {
	t.Parallel()

	svc := &fakeTrades{}
	tk := newTicket(priceMap{}, svc, 1000)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "NOPE"}, market.Stocks, market.Buy))

	_, err := tk.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Empty(t, svc.created)
}

func TestTicketServiceError(t *testing.T) {
	t.Parallel()

	svc := &fakeTrades{err: errors.New("boom")}
	tk := newTicket(priceMap{"EURUSD": 1.1}, svc, 1000)
	require.NoError(t, tk.Open(market.Instrument{Symbol: "EURUSD"}, market.Forex, market.Buy))

	_, err := tk.Submit(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, Closed, tk.State(), "closes on error too")
}

func TestTicketClosedRejectsEdits(t *testing.T) {
	t.Parallel()

	tk := newTicket(priceMap{}, &fakeTrades{}, 0)
	assert.ErrorIs(t, tk.SetSide(market.Sell), ErrNotOpen)
	_, _, err := tk.SetVolume(1)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = tk.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}
