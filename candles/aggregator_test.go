package candles

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradedesk/market"
)

var t0 = time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

type fakeHistory struct {
	mu      sync.Mutex
	candles []market.Candle
	err     error
	calls   int
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeHistory) History(ctx context.Context, sym string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.candles
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]market.Candle(nil), out...), nil
}

func bars(n int, tf market.Timeframe) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = market.Candle{Time: t0.Add(time.Duration(i) * tf.Duration()), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5}
	}
	return out
}

func seeded(t *testing.T, n int) (*Aggregator, *fakeHistory) {
	t.Helper()
	h := &fakeHistory{candles: bars(n, market.M1)}
	a := New(h, WithBufferCap(10))
	a.Select("EURUSD", market.M1)
	require.NoError(t, a.Resync(context.Background()))
	return a, h
}

func TestTickWithEmptyBufferRequestsResync(t *testing.T) {
	t.Parallel()

	a := New(&fakeHistory{})
	a.Select("EURUSD", market.M1)
	res := a.ApplyTick(1.1, t0)
	assert.Equal(t, TickResult{Resync: ResyncNow}, res)
	assert.Equal(t, 0, a.Len())
}

func TestTickUpdatesCurrentBucket(t *testing.T) {
	t.Parallel()

	a, _ := seeded(t, 3)
	last, _ := a.Last()

	res := a.ApplyTick(200, last.Time.Add(30*time.Second))
	assert.Equal(t, TickResult{Updated: true}, res)
	res = a.ApplyTick(50, last.Time.Add(40*time.Second))
	assert.True(t, res.Updated)

	got, _ := a.Last()
	assert.Equal(t, last.Open, got.Open)
	assert.Equal(t, 200.0, got.High)
	assert.Equal(t, 50.0, got.Low)
	assert.Equal(t, 50.0, got.Close)
	assert.Equal(t, 3, a.Len())
}

func TestTickAppendsAndSchedulesResync(t *testing.T) {
	t.Parallel()

	a, _ := seeded(t, 3)
	last, _ := a.Last()
	next := last.Time.Add(time.Minute)

	res := a.ApplyTick(110, next.Add(5*time.Second))
	assert.Equal(t, TickResult{Appended: true, Resync: ResyncDebounced}, res)

	got, _ := a.Last()
	assert.Equal(t, market.NewCandle(next, 110), got)
	assert.Equal(t, last.Time, a.Confirmed())
}

func TestTickOlderThanLastIgnored(t *testing.T) {
	t.Parallel()

	a, _ := seeded(t, 3)
	before := a.Candles()
	res := a.ApplyTick(999, t0.Add(-time.Hour))
	assert.Equal(t, TickResult{}, res)
	assert.Equal(t, before, a.Candles())

	assert.Equal(t, TickResult{}, a.ApplyTick(math.NaN(), t0))
	assert.Equal(t, TickResult{}, a.ApplyTick(-1, t0))
}

func TestBufferCapEvictsOldest(t *testing.T) {
	t.Parallel()

	a, _ := seeded(t, 10)
	first := a.Candles()[0]
	last, _ := a.Last()

	a.ApplyTick(120, last.Time.Add(time.Minute))
	got := a.Candles()
	assert.Len(t, got, 10)
	assert.True(t, got[0].Time.After(first.Time))
}

func TestBucketMonotonicity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		a, _ := seeded(t, 2)
		last, _ := a.Last()
		ts := last.Time
		for i := 0; i < 200; i++ {
			ts = ts.Add(time.Duration(rng.Intn(90)) * time.Second)
			a.ApplyTick(100+rng.Float64(), ts)
		}

		got := a.Candles()
		for i := 1; i < len(got); i++ {
			require.True(t, got[i].Time.After(got[i-1].Time), "trial %d index %d", trial, i)
		}
	}
}

func TestResyncReplacesBuffer(t *testing.T) {
	t.Parallel()

	a, h := seeded(t, 3)
	last, _ := a.Last()
	a.ApplyTick(500, last.Time.Add(time.Minute))
	assert.Equal(t, 4, a.Len())

	h.mu.Lock()
	h.candles = bars(5, market.M1)
	h.mu.Unlock()
	require.NoError(t, a.Resync(context.Background()))

	assert.Equal(t, bars(5, market.M1), a.Candles())
	assert.Equal(t, bars(5, market.M1)[4].Time, a.Confirmed())
}

func TestResyncFailureKeepsBuffer(t *testing.T) {
	t.Parallel()

	a, h := seeded(t, 3)
	before := a.Candles()

	h.mu.Lock()
	h.err = errors.New("history down")
	h.mu.Unlock()
	assert.Error(t, a.Resync(context.Background()))
	assert.Equal(t, before, a.Candles())

	h.mu.Lock()
	h.err = nil
	h.candles = []market.Candle{{Time: t0, Close: 0}}
	h.mu.Unlock()
	assert.NoError(t, a.Resync(context.Background()))
	assert.Equal(t, before, a.Candles())
}

func TestResyncDroppedAfterSelectionChange(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{candles: bars(3, market.M1), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	a := New(h)
	a.Select("EURUSD", market.M1)

	done := make(chan error, 1)
	go func() { done <- a.Resync(context.Background()) }()
	<-h.entered

	a.Select("GBPUSD", market.M5)
	close(h.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, Selection{Symbol: "GBPUSD", Timeframe: market.M5}, a.Selection())
}

func TestClean(t *testing.T) {
	t.Parallel()

	in := []market.Candle{
		{Time: t0.Add(2 * time.Minute), Open: 3, High: 3, Low: 3, Close: 3},
		{Time: t0, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: t0.Add(time.Minute), Close: math.Inf(1)},
		{Time: t0.Add(time.Minute), Close: 0},
		{Time: t0.Add(2*time.Minute + 10*time.Second), Open: 4, High: 4, Low: 4, Close: 4},
	}
	got := Clean(in, market.M1)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 4.0, got[1].Close, "last candle of a bucket wins")
	assert.Equal(t, t0.Add(2*time.Minute), got[1].Time)
}

func TestResyncWithoutSelection(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{}
	a := New(h)
	assert.NoError(t, a.Resync(context.Background()))
	assert.Equal(t, 0, h.calls)
}
