// Package quotes keeps the last known price of every watched instrument.
package quotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/symbol"
)

// Source looks up one instrument.
type Source interface {
	Quote(ctx context.Context, sym string) (market.Instrument, error)
}

// BatchSource looks up many instruments in one call. A Source that also
// implements BatchSource is refreshed in batches.
type BatchSource interface {
	Quotes(ctx context.Context, syms []string) ([]market.Instrument, error)
}

// Direction classifies the last price change of a key.
type Direction int

const (
	None Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "none"
}

var ErrRefreshInFlight = errors.New("quotes: refresh already in flight")

const singleLookupLimit = 4

type entry struct {
	cur     market.Quote
	prev    market.Quote
	hasPrev bool
}

// Cache maps symbol keys to their current and previous quote.
type Cache struct {
	src      Source
	log      *zap.Logger
	now      func() time.Time
	inflight atomic.Bool

	mu     sync.RWMutex
	quotes map[symbol.Key]*entry
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = logger.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache returns an empty cache. src may be nil when the cache is only fed
// through Apply and Ingest.
func NewCache(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:    src,
		log:    zap.NewNop(),
		now:    time.Now,
		quotes: make(map[symbol.Key]*entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Refresh fetches prices for keys. It returns ErrRefreshInFlight without any
// lookup when another refresh has not finished. Lookup failures are logged
// and leave the affected keys at their last known price.
func (c *Cache) Refresh(ctx context.Context, keys []symbol.Key) error {
	if c.src == nil || len(keys) == 0 {
		return nil
	}
	if !c.inflight.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer c.inflight.Store(false)

	missing := keys
	if batch, ok := c.src.(BatchSource); ok {
		missing = c.refreshBatch(ctx, batch, keys)
	}
	if len(missing) == 0 {
		return nil
	}
	return c.refreshSingles(ctx, missing)
}

// refreshBatch applies a batch response and returns the keys it did not
// answer.
func (c *Cache) refreshBatch(ctx context.Context, batch BatchSource, keys []symbol.Key) []symbol.Key {
	syms := make([]string, len(keys))
	for i, k := range keys {
		syms[i] = k.String()
	}

	items, err := batch.Quotes(ctx, syms)
	if err != nil {
		c.log.Warn("batch quote lookup failed, falling back to single lookups",
			zap.Int("symbols", len(keys)), zap.Error(err))
		return keys
	}

	now := c.now()
	answered := make([]bool, len(keys))
	for _, it := range items {
		p, ok := it.InferPrice()
		if !ok {
			continue
		}
		k := it.Key()
		for i, want := range keys {
			if !answered[i] && symbol.Match(want, k) {
				answered[i] = true
				c.Apply(market.Quote{Key: want, Price: p, Time: now})
			}
		}
	}

	var missing []symbol.Key
	for i, k := range keys {
		if !answered[i] {
			missing = append(missing, k)
		}
	}
	return missing
}

func (c *Cache) refreshSingles(ctx context.Context, keys []symbol.Key) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(singleLookupLimit)

	for _, k := range keys {
		k := k
		g.Go(func() error {
			it, err := c.src.Quote(gctx, k.String())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Debug("quote lookup failed", zap.String("symbol", k.String()), zap.Error(err))
				return nil
			}
			if p, ok := it.InferPrice(); ok {
				c.Apply(market.Quote{Key: k, Price: p, Time: c.now()})
			}
			return nil
		})
	}
	return g.Wait()
}

// Apply records q as the current quote of its key; the prior value becomes
// the previous quote.
func (c *Cache) Apply(q market.Quote) {
	if q.Key == "" || !market.Valid(q.Price) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.quotes[q.Key]
	if !ok {
		c.quotes[q.Key] = &entry{cur: q}
		return
	}
	e.prev, e.hasPrev = e.cur, true
	e.cur = q
}

// Ingest applies the inferred price of every instrument in items, such as a
// category list response.
func (c *Cache) Ingest(items []market.Instrument) int {
	now := c.now()
	n := 0
	for _, it := range items {
		if p, ok := it.InferPrice(); ok {
			c.Apply(market.Quote{Key: it.Key(), Price: p, Time: now})
			n++
		}
	}
	return n
}

// Get returns the current price of k or of the first of its aliases that is
// cached.
func (c *Cache) Get(k symbol.Key) (float64, bool) {
	q, ok := c.Quote(k)
	return q.Price, ok
}

// Quote returns the current quote of k, trying k's aliases in order.
func (c *Cache) Quote(k symbol.Key) (market.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range k.Aliases() {
		if e, ok := c.quotes[a]; ok {
			return e.cur, true
		}
	}
	return market.Quote{}, false
}

// Lookup normalizes raw and returns its price.
func (c *Cache) Lookup(raw string) (float64, bool) {
	return c.Get(symbol.Normalize(raw))
}

// Direction compares the current and previous price of k.
func (c *Cache) Direction(k symbol.Key) Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range k.Aliases() {
		e, ok := c.quotes[a]
		if !ok {
			continue
		}
		switch {
		case !e.hasPrev:
			return None
		case e.cur.Price > e.prev.Price:
			return Up
		case e.cur.Price < e.prev.Price:
			return Down
		}
		return None
	}
	return None
}

// Len is the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
