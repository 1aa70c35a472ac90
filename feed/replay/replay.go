// Package replay serves recorded ticks as if they came from the live feed.
// It implements the same quote, category and history lookups as the HTTP
// client, computed from the rows replayed so far.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/symbol"
)

var ErrUnknownSymbol = errors.New("replay: symbol not seen yet")

// Row is one recorded tick: time,symbol,bid,ask[,category].
type Row struct {
	Time     time.Time
	Symbol   string
	Bid, Ask float64
	Category market.Category
}

func (r Row) Mid() float64 { return (r.Bid + r.Ask) / 2 }

func (r Row) Instrument() market.Instrument {
	return market.Instrument{Symbol: r.Symbol, Bid: r.Bid, Ask: r.Ask}
}

// Parse reads rows from CSV. A header row is allowed; rows with an empty
// time are skipped. The result is sorted by time, keeping file order for
// equal times.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		out  []Row
		line int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ticks: %w", err)
		}
		line++
		if len(rec) == 0 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}
		row, ok, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func parseRow(rec []string) (Row, bool, error) {
	if len(rec) < 4 {
		return Row{}, false, fmt.Errorf("want at least 4 columns, got %d", len(rec))
	}
	ts := strings.TrimSpace(rec[0])
	if ts == "" {
		return Row{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Row{}, false, fmt.Errorf("time %q: %w", ts, err)
	}
	bid, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bid: %w", err)
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("ask: %w", err)
	}
	row := Row{Time: t.UTC(), Symbol: strings.TrimSpace(rec[1]), Bid: bid, Ask: ask, Category: market.Forex}
	if len(rec) >= 5 && strings.TrimSpace(rec[4]) != "" {
		if row.Category, err = market.ParseCategory(rec[4]); err != nil {
			return Row{}, false, err
		}
	}
	return row, true, nil
}

// DefaultInterval is the pause between replayed ticks in Run.
const DefaultInterval = time.Second

// Feed replays rows in time order.
type Feed struct {
	every time.Duration

	mu     sync.RWMutex
	rows   []Row
	cursor int
	last   map[symbol.Key]Row
	order  []symbol.Key
}

type Option func(*Feed)

// WithInterval sets how often Run replays a row.
func WithInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.every = d
		}
	}
}

func New(rows []Row, opts ...Option) *Feed {
	f := &Feed{every: DefaultInterval, rows: rows, last: map[symbol.Key]Row{}}
	for _, o := range opts {
		o(f)
	}
	return f
}

func Load(path string, opts ...Option) (*Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(rows, opts...), nil
}

// Step replays the next row. It reports false at the end.
func (f *Feed) Step() (market.Tick, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step()
}

func (f *Feed) step() (market.Tick, bool) {
	if f.cursor >= len(f.rows) {
		return market.Tick{}, false
	}
	r := f.rows[f.cursor]
	f.cursor++

	k := symbol.Normalize(r.Symbol)
	if _, seen := f.last[k]; !seen {
		f.order = append(f.order, k)
	}
	f.last[k] = r
	return market.Tick{Symbol: r.Symbol, Price: r.Mid(), Time: r.Time}, true
}

// AdvanceTo replays every row at or before t and returns how many it
// replayed.
func (f *Feed) AdvanceTo(t time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for f.cursor < len(f.rows) && !f.rows[f.cursor].Time.After(t) {
		f.step()
		n++
	}
	return n
}

// SeekEnd replays everything.
func (f *Feed) SeekEnd() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for f.cursor < len(f.rows) {
		f.step()
		n++
	}
	return n
}

func (f *Feed) Done() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cursor >= len(f.rows)
}

// Now is the time of the last replayed row.
func (f *Feed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.cursor == 0 {
		return time.Time{}
	}
	return f.rows[f.cursor-1].Time
}

// Run replays one row per interval into out, the way the live stream
// delivers ticks. It returns nil when the rows run out.
func (f *Feed) Run(ctx context.Context, out chan<- market.Tick) error {
	t := time.NewTicker(f.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		tick, ok := f.Step()
		if !ok {
			return nil
		}
		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Category lists the instruments of cat seen so far, in first-seen order.
func (f *Feed) Category(_ context.Context, cat market.Category) ([]market.Instrument, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []market.Instrument
	for _, k := range f.order {
		if r := f.last[k]; r.Category == cat {
			out = append(out, r.Instrument())
		}
	}
	return out, nil
}

func (f *Feed) Quotes(_ context.Context, syms []string) ([]market.Instrument, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]market.Instrument, 0, len(syms))
	for _, s := range syms {
		if r, ok := f.lookup(s); ok {
			out = append(out, r.Instrument())
		}
	}
	return out, nil
}

func (f *Feed) Quote(_ context.Context, sym string) (market.Instrument, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r, ok := f.lookup(sym)
	if !ok {
		return market.Instrument{}, fmt.Errorf("%s: %w", sym, ErrUnknownSymbol)
	}
	return r.Instrument(), nil
}

func (f *Feed) lookup(raw string) (Row, bool) {
	for _, a := range symbol.Normalize(raw).Aliases() {
		if r, ok := f.last[a]; ok {
			return r, true
		}
	}
	return Row{}, false
}

// History aggregates the replayed mids of sym into tf candles and returns
// the newest limit of them.
func (f *Feed) History(_ context.Context, sym string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	want := symbol.Normalize(sym)
	var out []market.Candle
	for _, r := range f.rows[:f.cursor] {
		if !symbol.Match(want, symbol.Normalize(r.Symbol)) {
			continue
		}
		p := r.Mid()
		if !market.Valid(p) {
			continue
		}
		b := tf.Bucket(r.Time)
		if n := len(out); n > 0 && out[n-1].Time.Equal(b) {
			out[n-1].Apply(p)
			continue
		}
		out = append(out, market.NewCandle(b, p))
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
