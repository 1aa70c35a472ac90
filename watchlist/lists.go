package watchlist

import (
	"sync"

	"github.com/rustyeddy/tradedesk/market"
)

// Lists keeps the last good list of each category. Lists are replaced whole,
// so readers never see a partial rebuild.
type Lists struct {
	mu    sync.RWMutex
	lists map[market.Category][]Entry
}

func NewLists() *Lists {
	return &Lists{lists: make(map[market.Category][]Entry)}
}

func (l *Lists) Set(cat market.Category, entries []Entry) {
	cp := append([]Entry(nil), entries...)
	l.mu.Lock()
	l.lists[cat] = cp
	l.mu.Unlock()
}

// Get returns a copy of the category's list.
func (l *Lists) Get(cat market.Category) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.lists[cat]...)
}

// Symbols returns the raw symbols of a category's list.
func (l *Lists) Symbols(cat market.Category) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.lists[cat]))
	for _, e := range l.lists[cat] {
		out = append(out, e.Symbol)
	}
	return out
}
