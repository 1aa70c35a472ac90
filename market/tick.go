package market

import (
	"time"

	"github.com/rustyeddy/tradedesk/symbol"
)

// Tick is a single trade price for an instrument.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Key returns the canonical key of the tick's symbol.
func (t Tick) Key() symbol.Key { return symbol.Normalize(t.Symbol) }

// Quote is the last known price of an instrument.
type Quote struct {
	Key   symbol.Key
	Price float64
	Time  time.Time
}
