package market

import "github.com/rustyeddy/tradedesk/symbol"

// Instrument is a raw record from the category list or quote services.
// Non-finite or non-positive price fields are treated as absent.
type Instrument struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name,omitempty"`
	Bid    float64 `json:"bid,omitempty"`
	Ask    float64 `json:"ask,omitempty"`
	Price  float64 `json:"price,omitempty"`
	Close  float64 `json:"close,omitempty"`
}

func (i Instrument) Key() symbol.Key { return symbol.Normalize(i.Symbol) }

// InferPrice picks the best available price: Price, then the bid/ask mid,
// then Bid, Ask and finally Close.
func (i Instrument) InferPrice() (float64, bool) {
	switch {
	case Valid(i.Price):
		return i.Price, true
	case Valid(i.Bid) && Valid(i.Ask):
		return (i.Bid + i.Ask) / 2, true
	case Valid(i.Bid):
		return i.Bid, true
	case Valid(i.Ask):
		return i.Ask, true
	case Valid(i.Close):
		return i.Close, true
	}
	return 0, false
}
