package order

import (
	"context"
	"time"

	"github.com/rustyeddy/tradedesk/ledger"
)

// TradeService is the external trade ledger.
type TradeService interface {
	Create(ctx context.Context, t ledger.Trade) (ledger.Trade, error)
	Update(ctx context.Context, t ledger.Trade) error
	CloseTrade(ctx context.Context, id string, price float64, at time.Time) (ledger.Trade, error)
	ListByClient(ctx context.Context, clientID string) ([]ledger.Trade, error)
	ListByBroker(ctx context.Context, brokerID string) ([]ledger.Trade, error)
}

// PriceLookup resolves a live price by raw symbol, alias aware.
type PriceLookup interface {
	Lookup(raw string) (float64, bool)
}

// LivePnL values t at its close price when closed, or at the live quote
// when open. It reports false when no price resolves.
func LivePnL(t ledger.Trade, prices PriceLookup) (float64, bool) {
	ref := t.ClosePrice
	if !t.Closed() {
		if prices == nil {
			return 0, false
		}
		var ok bool
		if ref, ok = prices.Lookup(t.Symbol); !ok {
			return 0, false
		}
	}
	if ref <= 0 || !finite(ref) {
		return 0, false
	}
	lot := t.Lot
	if !finite(lot) || lot <= 0 {
		lot = 1
	}
	return PnL(t.Side, t.EntryPrice, t.Volume, lot, ref), true
}

// Position is a trade with its current valuation.
type Position struct {
	ledger.Trade
	PnL   float64
	Known bool
}

// Value computes the live PnL of every trade.
func Value(trades []ledger.Trade, prices PriceLookup) []Position {
	out := make([]Position, len(trades))
	for i, t := range trades {
		v, ok := LivePnL(t, prices)
		out[i] = Position{Trade: t, PnL: v, Known: ok}
	}
	return out
}

// Total sums the known PnL of positions.
func Total(ps []Position) float64 {
	var sum float64
	for _, p := range ps {
		if p.Known {
			sum += p.PnL
		}
	}
	return Round2(sum)
}
