// Package watchlist composes the instrument list shown for each market
// category: a curated base ordering followed by the user's pinned extras.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/symbol"
)

// DefaultCap is the maximum number of entries per category.
const DefaultCap = 20

var (
	ErrInBase        = errors.New("watchlist: instrument is part of the base list")
	ErrAlreadyPinned = errors.New("watchlist: instrument already pinned")
	ErrNotPinned     = errors.New("watchlist: instrument is not pinned")
	ErrExtrasFull    = errors.New("watchlist: pinned list is full")
)

// ExtrasStore persists the pinned keys of each category, in order.
type ExtrasStore interface {
	LoadExtras(ctx context.Context, cat market.Category) ([]string, error)
	SaveExtras(ctx context.Context, cat market.Category, keys []string) error
}

// Entry is an instrument shown in a watchlist.
type Entry struct {
	market.Instrument
	Key    symbol.Key
	Pinned bool
}

type Curator struct {
	store ExtrasStore
	base  map[market.Category][]Group
	cap   int
	log   *zap.Logger

	// serializes read-modify-write of the extras lists
	mu sync.Mutex
}

type Option func(*Curator)

func WithCap(n int) Option {
	return func(c *Curator) {
		if n > 0 {
			c.cap = n
		}
	}
}

func WithBase(base map[market.Category][]Group) Option {
	return func(c *Curator) { c.base = base }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Curator) { c.log = logger.OrNop(l) }
}

func NewCurator(store ExtrasStore, opts ...Option) *Curator {
	c := &Curator{
		store: store,
		base:  DefaultBase,
		cap:   DefaultCap,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Curator) Cap() int { return c.cap }

// Build returns base matches in base order followed by pinned extras in their
// stored order, never more than the cap. A failing extras store degrades to
// the base list.
func (c *Curator) Build(ctx context.Context, cat market.Category, items []market.Instrument) ([]Entry, error) {
	keyed := make([]Entry, len(items))
	for i, it := range items {
		keyed[i] = Entry{Instrument: it, Key: it.Key()}
	}
	used := make([]bool, len(keyed))

	out := make([]Entry, 0, c.cap)
	for _, g := range c.base[cat] {
		if len(out) >= c.cap {
			break
		}
		if i := findGroup(keyed, used, g); i >= 0 {
			used[i] = true
			out = append(out, keyed[i])
		}
	}

	extras, err := c.loadExtras(ctx, cat)
	if err != nil {
		c.log.Warn("load pinned extras failed", zap.Stringer("category", cat), zap.Error(err))
		return out, nil
	}
	for _, raw := range extras {
		if len(out) >= c.cap {
			break
		}
		if i := find(keyed, used, symbol.Normalize(raw)); i >= 0 {
			used[i] = true
			e := keyed[i]
			e.Pinned = true
			out = append(out, e)
		}
	}
	return out, nil
}

func findGroup(items []Entry, used []bool, g Group) int {
	for _, alias := range g {
		if i := find(items, used, symbol.Normalize(alias)); i >= 0 {
			return i
		}
	}
	return -1
}

func find(items []Entry, used []bool, k symbol.Key) int {
	for i := range items {
		if !used[i] && symbol.Match(items[i].Key, k) {
			return i
		}
	}
	return -1
}

// IsBase reports whether raw matches any alias of the category's base groups.
func (c *Curator) IsBase(cat market.Category, raw string) bool {
	k := symbol.Normalize(raw)
	for _, g := range c.base[cat] {
		for _, alias := range g {
			if symbol.Match(k, symbol.Normalize(alias)) {
				return true
			}
		}
	}
	return false
}

// Extras returns the pinned keys of a category.
func (c *Curator) Extras(ctx context.Context, cat market.Category) ([]string, error) {
	return c.loadExtras(ctx, cat)
}

// Pin appends raw to the category's extras.
func (c *Curator) Pin(ctx context.Context, cat market.Category, raw string) error {
	k := symbol.Normalize(raw)
	if k == "" {
		return fmt.Errorf("watchlist: empty symbol %q", raw)
	}
	if c.IsBase(cat, raw) {
		return ErrInBase
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	extras, err := c.loadExtras(ctx, cat)
	if err != nil {
		return err
	}
	for _, e := range extras {
		if symbol.Match(symbol.Normalize(e), k) {
			return ErrAlreadyPinned
		}
	}
	if len(extras) >= c.cap {
		return ErrExtrasFull
	}
	return c.saveExtras(ctx, cat, append(extras, k.String()))
}

// Unpin removes raw from the category's extras.
func (c *Curator) Unpin(ctx context.Context, cat market.Category, raw string) error {
	k := symbol.Normalize(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	extras, err := c.loadExtras(ctx, cat)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(extras))
	for _, e := range extras {
		if !symbol.Match(symbol.Normalize(e), k) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(extras) {
		return ErrNotPinned
	}
	return c.saveExtras(ctx, cat, kept)
}

func (c *Curator) loadExtras(ctx context.Context, cat market.Category) ([]string, error) {
	if c.store == nil {
		return nil, nil
	}
	keys, err := c.store.LoadExtras(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("load extras %s: %w", cat, err)
	}
	return keys, nil
}

func (c *Curator) saveExtras(ctx context.Context, cat market.Category, keys []string) error {
	if c.store == nil {
		return errors.New("watchlist: no extras store configured")
	}
	if err := c.store.SaveExtras(ctx, cat, keys); err != nil {
		return fmt.Errorf("save extras %s: %w", cat, err)
	}
	return nil
}
