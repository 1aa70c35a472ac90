package market

import (
	"fmt"
	"strings"
)

// Category groups instruments for the watchlist tabs and lot sizing.
type Category string

const (
	Forex       Category = "forex"
	Indices     Category = "indices"
	Commodities Category = "commodities"
	Crypto      Category = "crypto"
	Stocks      Category = "stocks"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{Forex, Indices, Commodities, Crypto, Stocks}
}

func (c Category) String() string { return string(c) }

func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forex", "fx":
		return Forex, nil
	case "indices", "index":
		return Indices, nil
	case "commodities", "commodity":
		return Commodities, nil
	case "crypto":
		return Crypto, nil
	case "stocks", "stock", "equities":
		return Stocks, nil
	default:
		return "", fmt.Errorf("unknown market category %q", s)
	}
}
