package chart

import (
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/tradedesk/drawing"
	"github.com/rustyeddy/tradedesk/market"
)

// Projection maps data coordinates to pixels for one frame. Times map
// through the candle buffer, so gaps in the history (weekends, closed
// sessions) take no horizontal space.
type Projection struct {
	Plot       Rect
	Start, End int
	Slots      int
	Lo, Hi     float64
	// Origin is the time of the candle at Start.
	Origin   time.Time
	Interval time.Duration

	// times holds the open time of every buffered candle.
	times []time.Time
}

// Project builds the frame projection for candles seen through vp. It
// reports false when the window is empty.
func Project(plot Rect, candles []market.Candle, vp Viewport, interval time.Duration) (Projection, bool) {
	vp.Clamp(len(candles))
	start, end := vp.Window(len(candles))
	if end <= start {
		return Projection{}, false
	}
	lo, hi, ok := Bounds(candles[start:end])
	if !ok {
		return Projection{}, false
	}
	return Projection{
		Plot:     plot,
		Start:    start,
		End:      end,
		Slots:    vp.CandlesOnScreen,
		Lo:       lo,
		Hi:       hi,
		Origin:   candles[start].Time,
		Interval: interval,
		times:    times(candles),
	}, true
}

// SlotWidth is the horizontal pixel width given to one candle.
func (p Projection) SlotWidth() float64 {
	if p.Slots <= 0 {
		return 0
	}
	return p.Plot.Width() / float64(p.Slots)
}

// XForIndex is the center x of the candle at absolute buffer index i.
func (p Projection) XForIndex(i int) float64 {
	return p.Plot.Left + (float64(i-p.Start)+0.5)*p.SlotWidth()
}

// XForTime is the x of t. Times between two candles land proportionally
// between them, times past either end of the buffer extrapolate by Interval.
func (p Projection) XForTime(t time.Time) float64 {
	return p.Plot.Left + (p.indexFor(t)-float64(p.Start)+0.5)*p.SlotWidth()
}

// TimeAt returns the bar time under x, snapped to whole bars.
func (p Projection) TimeAt(x float64) time.Time {
	w := p.SlotWidth()
	if w <= 0 {
		return p.Origin
	}
	i := p.Start + int(math.Round((x-p.Plot.Left)/w-0.5))
	return p.TimeOf(i)
}

// TimeOf is the open time of the candle at buffer index i. Indexes outside
// the buffer extrapolate from the nearest end by Interval.
func (p Projection) TimeOf(i int) time.Time {
	n := len(p.times)
	switch {
	case n == 0:
		return p.Origin.Add(time.Duration(i-p.Start) * p.Interval)
	case i < 0:
		return p.times[0].Add(time.Duration(i) * p.Interval)
	case i >= n:
		return p.times[n-1].Add(time.Duration(i-n+1) * p.Interval)
	}
	return p.times[i]
}

// indexFor is the fractional buffer index of t.
func (p Projection) indexFor(t time.Time) float64 {
	n := len(p.times)
	if n == 0 {
		if p.Interval <= 0 {
			return float64(p.Start)
		}
		return float64(p.Start) + float64(t.Sub(p.Origin))/float64(p.Interval)
	}
	first, last := p.times[0], p.times[n-1]
	switch {
	case t.Before(first):
		if p.Interval <= 0 {
			return 0
		}
		return -float64(first.Sub(t)) / float64(p.Interval)
	case t.After(last):
		if p.Interval <= 0 {
			return float64(n - 1)
		}
		return float64(n-1) + float64(t.Sub(last))/float64(p.Interval)
	}
	i := sort.Search(n, func(i int) bool { return !p.times[i].Before(t) })
	if p.times[i].Equal(t) {
		return float64(i)
	}
	prev := p.times[i-1]
	return float64(i-1) + float64(t.Sub(prev))/float64(p.times[i].Sub(prev))
}

// IndexAt returns the buffer index of the candle drawn at x.
func (p Projection) IndexAt(x float64) (int, bool) {
	w := p.SlotWidth()
	if w <= 0 {
		return 0, false
	}
	i := p.Start + int(math.Floor((x-p.Plot.Left)/w))
	return i, i >= p.Start && i < p.End
}

func (p Projection) Y(price float64) float64 { return YFor(price, p.Plot, p.Lo, p.Hi) }
func (p Projection) Price(y float64) float64 { return PriceFromY(y, p.Plot, p.Lo, p.Hi) }

// PointAt converts a pixel into chart data coordinates for drawing tools.
func (p Projection) PointAt(x, y float64) drawing.Point {
	return drawing.Point{Time: p.TimeAt(x), Price: p.Price(y)}
}

func times(candles []market.Candle) []time.Time {
	out := make([]time.Time, len(candles))
	for i, c := range candles {
		out[i] = c.Time
	}
	return out
}
