// Package prefs is typed access to what the workstation remembers between
// sessions: pinned watchlist extras and the last chart view.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/store"
)

const viewKey = "view"

type BalanceMode string

const (
	BalanceReal BalanceMode = "real"
	BalanceDemo BalanceMode = "demo"
)

// ViewState is the chart view restored on the next start.
type ViewState struct {
	Category        market.Category  `json:"category"`
	Symbol          string           `json:"symbol"`
	Timeframe       market.Timeframe `json:"timeframe"`
	CandlesOnScreen int              `json:"candles_on_screen"`
	PanOffset       int              `json:"pan_offset"`
	Tabs            []string         `json:"tabs,omitempty"`
	BalanceMode     BalanceMode      `json:"balance_mode,omitempty"`
}

type Store struct {
	kv store.KV
}

func New(kv store.KV) *Store {
	return &Store{kv: kv}
}

func extrasKey(cat market.Category) string {
	return "extras:" + string(cat)
}

// LoadExtras returns the pinned keys of cat in pin order. A category that
// was never saved has none.
func (s *Store) LoadExtras(ctx context.Context, cat market.Category) ([]string, error) {
	var keys []string
	err := store.GetJSON(ctx, s.kv, extrasKey(cat), &keys)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extras %s: %w", cat, err)
	}
	return keys, nil
}

func (s *Store) SaveExtras(ctx context.Context, cat market.Category, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	return store.PutJSON(ctx, s.kv, extrasKey(cat), keys)
}

// LoadView reports false when no view was saved yet.
func (s *Store) LoadView(ctx context.Context) (ViewState, bool, error) {
	var v ViewState
	err := store.GetJSON(ctx, s.kv, viewKey, &v)
	if errors.Is(err, store.ErrNotFound) {
		return ViewState{}, false, nil
	}
	if err != nil {
		return ViewState{}, false, fmt.Errorf("view state: %w", err)
	}
	return v, true, nil
}

func (s *Store) SaveView(ctx context.Context, v ViewState) error {
	return store.PutJSON(ctx, s.kv, viewKey, v)
}
