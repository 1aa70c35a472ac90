package watchlist

import "github.com/rustyeddy/tradedesk/market"

// Group is one base slot: the first live instrument matching any alias fills it.
type Group []string

// DefaultBase is the curated ordering shown at the top of every category.
var DefaultBase = map[market.Category][]Group{
	market.Forex: {
		{"EURUSD"},
		{"GBPUSD"},
		{"USDJPY"},
		{"USDCHF"},
		{"AUDUSD"},
		{"USDCAD"},
		{"NZDUSD"},
		{"EURGBP"},
		{"EURJPY"},
		{"GBPJPY"},
	},
	market.Indices: {
		{"SPX", "US500", "GSPC", "SPY"},
		{"NDX", "US100", "NAS100", "QQQ"},
		{"DJI", "US30", "DIA"},
		{"DAX", "GER40", "DE40"},
		{"FTSE", "UK100"},
		{"N225", "JP225"},
	},
	market.Commodities: {
		{"GCZ5", "GCUSD", "XAUUSD", "GOLD"},
		{"SIZ5", "SIUSD", "XAGUSD", "SILVER"},
		{"CLUSD", "USOIL", "WTI", "CL"},
		{"BZUSD", "UKOIL", "BRENT"},
		{"NGUSD", "NATGAS", "NG"},
		{"HGUSD", "COPPER"},
	},
	market.Crypto: {
		{"BTCUSD"},
		{"ETHUSD"},
		{"SOLUSD"},
		{"XRPUSD"},
		{"BNBUSD"},
		{"ADAUSD"},
		{"DOGEUSD"},
	},
	market.Stocks: {
		{"AAPL"},
		{"MSFT"},
		{"NVDA"},
		{"AMZN"},
		{"GOOGL", "GOOG"},
		{"META"},
		{"TSLA"},
	},
}
