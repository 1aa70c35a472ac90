package workstation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradedesk/ledger"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/order"
	"github.com/rustyeddy/tradedesk/prefs"
	"github.com/rustyeddy/tradedesk/symbol"
)

// Ticket is the order ticket, nil without a trade service.
func (w *Workstation) Ticket() *order.Ticket { return w.ticket }

// OpenTicket opens the order ticket for the charted instrument, checked
// against the balance the user selected.
func (w *Workstation) OpenTicket(side market.Side) error {
	if w.ticket == nil {
		return ErrNoTrades
	}
	sym := w.candles.Selection().Symbol
	if symbol.Normalize(sym) == "" {
		return ErrNoSymbol
	}
	if err := w.ticket.Open(w.instrument(sym), w.Category(), side); err != nil {
		return err
	}
	return w.ticket.SetDemo(w.BalanceMode() == prefs.BalanceDemo)
}

// SubmitTicket submits the draft and refreshes the positions on success.
func (w *Workstation) SubmitTicket(ctx context.Context) (ledger.Trade, error) {
	if w.ticket == nil {
		return ledger.Trade{}, ErrNoTrades
	}
	t, err := w.ticket.Submit(ctx)
	if err != nil {
		return t, err
	}
	w.mu.Lock()
	w.open = append([]ledger.Trade{t}, w.open...)
	w.mu.Unlock()
	w.sched.Trigger(loopTrades)
	return t, nil
}

func (w *Workstation) BalanceMode() prefs.BalanceMode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance
}

// SetBalanceMode switches between the real and demo balance, including for
// an open ticket.
func (w *Workstation) SetBalanceMode(m prefs.BalanceMode) error {
	switch m {
	case prefs.BalanceReal, prefs.BalanceDemo:
	default:
		return fmt.Errorf("workstation: unknown balance mode %q", m)
	}
	w.mu.Lock()
	w.balance = m
	w.mu.Unlock()

	if w.ticket == nil {
		return nil
	}
	if err := w.ticket.SetDemo(m == prefs.BalanceDemo); err != nil && !errors.Is(err, order.ErrNotOpen) {
		return err
	}
	return nil
}

// Positions values the known trades against the live quotes.
func (w *Workstation) Positions() []order.Position {
	w.mu.RLock()
	trades := append([]ledger.Trade(nil), w.open...)
	w.mu.RUnlock()
	return order.Value(trades, w.cache)
}

// instrument finds sym's record in the active watchlist; an unknown symbol
// gets a bare record so the ticket falls back to the live quote.
func (w *Workstation) instrument(sym string) market.Instrument {
	k := symbol.Normalize(sym)
	for _, e := range w.lists.Get(w.Category()) {
		if symbol.Match(e.Key, k) {
			return e.Instrument
		}
	}
	return market.Instrument{Symbol: sym}
}
