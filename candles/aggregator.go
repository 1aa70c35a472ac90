// Package candles turns the price stream of the selected instrument into OHLC
// bars and reconciles them with the history service.
//
// Ticks are folded into the newest bar locally. Whenever a tick opens a bar
// past the last one confirmed by history, the caller is told to schedule a
// debounced resync, which replaces the buffer wholesale.
package candles

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
)

const (
	DefaultHistoryLimit = 300
	DefaultBufferCap    = 500
	DefaultTimeout      = 12 * time.Second
)

// HistorySource returns up to limit of the most recent candles.
type HistorySource interface {
	History(ctx context.Context, sym string, tf market.Timeframe, limit int) ([]market.Candle, error)
}

// ResyncKind tells the caller what kind of resync a tick asks for.
type ResyncKind int

const (
	ResyncNone ResyncKind = iota
	// ResyncNow means the buffer is empty and nothing can be aggregated.
	ResyncNow
	// ResyncDebounced means a new bar opened past the confirmed one.
	ResyncDebounced
)

// TickResult reports what ApplyTick did.
type TickResult struct {
	Updated  bool
	Appended bool
	Resync   ResyncKind
}

// Selection is the instrument and timeframe being aggregated.
type Selection struct {
	Symbol    string
	Timeframe market.Timeframe
}

type Aggregator struct {
	src     HistorySource
	limit   int
	cap     int
	timeout time.Duration
	log     *zap.Logger

	mu        sync.RWMutex
	sel       Selection
	gen       uint64
	candles   []market.Candle
	confirmed time.Time
}

type Option func(*Aggregator)

func WithHistoryLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

func WithBufferCap(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.cap = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = logger.OrNop(l) }
}

func New(src HistorySource, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:     src,
		limit:   DefaultHistoryLimit,
		cap:     DefaultBufferCap,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		sel:     Selection{Timeframe: market.M5},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Select switches instrument and timeframe. The buffer is emptied and any
// resync still running for the old selection is discarded when it returns.
func (a *Aggregator) Select(sym string, tf market.Timeframe) {
	if tf <= 0 {
		tf = market.M5
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sel = Selection{Symbol: sym, Timeframe: tf}
	a.gen++
	a.candles = nil
	a.confirmed = time.Time{}
}

func (a *Aggregator) Selection() Selection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sel
}

// ApplyTick folds a price of the selected instrument into the buffer.
func (a *Aggregator) ApplyTick(price float64, ts time.Time) TickResult {
	if !market.Valid(price) || ts.IsZero() {
		return TickResult{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.candles) == 0 {
		return TickResult{Resync: ResyncNow}
	}

	bucket := a.sel.Timeframe.Bucket(ts)
	last := &a.candles[len(a.candles)-1]

	switch {
	case bucket.Equal(last.Time):
		last.Apply(price)
		return TickResult{Updated: true}
	case bucket.Before(last.Time):
		return TickResult{}
	}

	a.candles = append(a.candles, market.NewCandle(bucket, price))
	if over := len(a.candles) - a.cap; over > 0 {
		a.candles = append([]market.Candle(nil), a.candles[over:]...)
	}

	res := TickResult{Appended: true}
	if bucket.After(a.confirmed) {
		res.Resync = ResyncDebounced
	}
	return res
}

// Resync replaces the buffer with the history service's candles. On error, or
// when no usable candle comes back, the current buffer is kept.
func (a *Aggregator) Resync(ctx context.Context) error {
	a.mu.RLock()
	sel, gen := a.sel, a.gen
	a.mu.RUnlock()

	if sel.Symbol == "" || a.src == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.src.History(ctx, sel.Symbol, sel.Timeframe, a.limit)
	if err != nil {
		return fmt.Errorf("history %s %s: %w", sel.Symbol, sel.Timeframe, err)
	}

	fresh := Clean(raw, sel.Timeframe)
	if len(fresh) > a.cap {
		fresh = fresh[len(fresh)-a.cap:]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || ctx.Err() != nil {
		a.log.Debug("dropping stale history",
			zap.String("symbol", sel.Symbol), zap.Stringer("tf", sel.Timeframe))
		return nil
	}
	if len(fresh) == 0 {
		a.log.Debug("history returned no usable candles",
			zap.String("symbol", sel.Symbol), zap.Int("raw", len(raw)))
		return nil
	}

	a.candles = fresh
	a.confirmed = fresh[len(fresh)-1].Time
	a.log.Debug("history resynced",
		zap.String("symbol", sel.Symbol),
		zap.Stringer("tf", sel.Timeframe),
		zap.Int("candles", len(fresh)),
		zap.Time("confirmed", a.confirmed))
	return nil
}

// Clean drops candles without a finite positive close, aligns times to tf
// buckets, sorts ascending and keeps the last candle of each bucket.
func Clean(in []market.Candle, tf market.Timeframe) []market.Candle {
	out := make([]market.Candle, 0, len(in))
	for _, c := range in {
		if !c.Valid() {
			continue
		}
		c.Time = tf.Bucket(c.Time)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	w := 0
	for i := range out {
		if w > 0 && out[w-1].Time.Equal(out[i].Time) {
			out[w-1] = out[i]
			continue
		}
		out[w] = out[i]
		w++
	}
	return out[:w]
}

// Candles returns a copy of the buffer, oldest first.
func (a *Aggregator) Candles() []market.Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]market.Candle, len(a.candles))
	copy(out, a.candles)
	return out
}

func (a *Aggregator) Last() (market.Candle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.candles) == 0 {
		return market.Candle{}, false
	}
	return a.candles[len(a.candles)-1], true
}

// Confirmed is the newest bucket delivered by the last successful resync.
func (a *Aggregator) Confirmed() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.confirmed
}

func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.candles)
}
