package chart

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rustyeddy/tradedesk/drawing"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/quotes"
)

// Theme holds the renderer colors.
type Theme struct {
	Background string
	Grid       string
	Text       string
	Up         string
	Down       string
	Drawing    string
	Preview    string
	Crosshair  string
	Reward     string
	Risk       string
	LiveUp     string
	LiveDown   string
	LiveFlat   string
	Overlays   []string
}

func DefaultTheme() Theme {
	return Theme{
		Background: "#131722",
		Grid:       "#2a2e39",
		Text:       "#b2b5be",
		Up:         "#26a69a",
		Down:       "#ef5350",
		Drawing:    "#2962ff",
		Preview:    "#787b86",
		Crosshair:  "#9598a1",
		Reward:     "#26a69a",
		Risk:       "#ef5350",
		LiveUp:     "#26a69a",
		LiveDown:   "#ef5350",
		LiveFlat:   "#787b86",
		Overlays:   []string{"#f7c948", "#ab47bc", "#29b6f6"},
	}
}

// Layout reserves room for the axes around the plot.
type Layout struct {
	Top, Left     float64
	PriceAxis     float64
	TimeAxis      float64
	PriceTicks    int
	TimeLabelBars int
}

func DefaultLayout() Layout {
	return Layout{Top: 24, Left: 8, PriceAxis: 72, TimeAxis: 24, PriceTicks: 8, TimeLabelBars: 12}
}

// Overlay is an indicator series aligned with Scene.Candles.
type Overlay struct {
	Name   string
	Values []float64
	Color  string
}

type Pointer struct {
	X, Y float64
}

// Scene is everything one frame needs. Candles is the whole buffer; the
// viewport picks the window.
type Scene struct {
	Title     string
	Candles   []market.Candle
	Viewport  Viewport
	Interval  time.Duration
	Overlays  []Overlay
	Drawings  drawing.Collection
	Preview   drawing.Object
	Pointer   *Pointer
	LivePrice float64
	Direction quotes.Direction
}

type Renderer struct {
	theme  Theme
	layout Layout
}

type RendererOption func(*Renderer)

func WithTheme(t Theme) RendererOption   { return func(r *Renderer) { r.theme = t } }
func WithLayout(l Layout) RendererOption { return func(r *Renderer) { r.layout = l } }

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{theme: DefaultTheme(), layout: DefaultLayout()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Plot returns the candle area of a w by h canvas.
func (r *Renderer) Plot(w, h float64) Rect {
	return Rect{
		Left:   r.layout.Left,
		Top:    r.layout.Top,
		Right:  math.Max(r.layout.Left+1, w-r.layout.PriceAxis),
		Bottom: math.Max(r.layout.Top+1, h-r.layout.TimeAxis),
	}
}

// Draw paints s onto c and returns the projection used, so pointer input can
// be mapped back to data coordinates. It reports false for an empty window.
func (r *Renderer) Draw(c Canvas, s Scene) (Projection, bool) {
	w, h := c.Size()
	plot := r.Plot(w, h)
	p, ok := Project(plot, s.Candles, s.Viewport, s.Interval)

	inLayer(c, LayerBackground, func() {
		c.Clear(r.theme.Background)
		if ok {
			r.grid(c, p)
		}
	})
	inLayer(c, LayerAxes, func() {
		r.axes(c, p, s, ok)
	})
	if !ok {
		return Projection{}, false
	}
	inLayer(c, LayerCandles, func() {
		r.candles(c, p, s.Candles)
	})
	inLayer(c, LayerOverlays, func() {
		r.overlays(c, p, s.Overlays)
	})
	inLayer(c, LayerDrawings, func() {
		r.collection(c, p, s.Drawings, s.Interval)
	})
	inLayer(c, LayerPreview, func() {
		if s.Preview != nil {
			r.object(c, p, s.Preview, s.Interval, true)
		}
	})
	inLayer(c, LayerCrosshair, func() {
		r.crosshair(c, p, s)
	})
	inLayer(c, LayerLivePrice, func() {
		r.livePrice(c, p, s.LivePrice, s.Direction)
	})
	return p, true
}

func (r *Renderer) grid(c Canvas, p Projection) {
	st := Style{Color: r.theme.Grid, Width: 1}
	for _, v := range PriceTicks(p.Lo, p.Hi, r.layout.PriceTicks) {
		y := p.Y(v)
		c.Line(p.Plot.Left, y, p.Plot.Right, y, st)
	}
	step := max(r.layout.TimeLabelBars, 1)
	for i := p.Start; i < p.End; i += step {
		x := p.XForIndex(i)
		c.Line(x, p.Plot.Top, x, p.Plot.Bottom, st)
	}
}

func (r *Renderer) axes(c Canvas, p Projection, s Scene, ok bool) {
	text := Style{Color: r.theme.Text, FontSize: 11}
	if s.Title != "" {
		c.Text(r.layout.Left, r.layout.Top-8, s.Title, text)
	}
	if !ok {
		w, h := c.Size()
		c.Text(w/2, h/2, "no data", Style{Color: r.theme.Text, FontSize: 13, Anchor: "middle"})
		return
	}
	for _, v := range PriceTicks(p.Lo, p.Hi, r.layout.PriceTicks) {
		c.Text(p.Plot.Right+6, p.Y(v)+4, FormatPrice(v), text)
	}
	step := max(r.layout.TimeLabelBars, 1)
	for i := p.Start; i < p.End; i += step {
		c.Text(p.XForIndex(i), p.Plot.Bottom+16, formatTime(s.Candles[i].Time, p.Interval), Style{Color: r.theme.Text, FontSize: 11, Anchor: "middle"})
	}
}

func (r *Renderer) candles(c Canvas, p Projection, candles []market.Candle) {
	body := math.Max(1, p.SlotWidth()*0.7)
	for i := p.Start; i < p.End; i++ {
		k := candles[i]
		color := r.theme.Down
		if k.Bullish() {
			color = r.theme.Up
		}
		x := p.XForIndex(i)
		c.Line(x, p.Y(k.High), x, p.Y(k.Low), Style{Color: color, Width: 1})

		top, bottom := p.Y(math.Max(k.Open, k.Close)), p.Y(math.Min(k.Open, k.Close))
		c.FillRect(x-body/2, top, body, math.Max(1, bottom-top), color)
	}
}

func (r *Renderer) overlays(c Canvas, p Projection, overlays []Overlay) {
	for n, o := range overlays {
		color := o.Color
		if color == "" && len(r.theme.Overlays) > 0 {
			color = r.theme.Overlays[n%len(r.theme.Overlays)]
		}
		st := Style{Color: color, Width: 1.5}
		for i := p.Start + 1; i < p.End && i < len(o.Values); i++ {
			a, b := o.Values[i-1], o.Values[i]
			if !finite(a) || !finite(b) {
				continue
			}
			c.Line(p.XForIndex(i-1), p.Y(a), p.XForIndex(i), p.Y(b), st)
		}
	}
}

func (r *Renderer) collection(c Canvas, p Projection, col drawing.Collection, interval time.Duration) {
	for _, o := range col.HLines {
		r.object(c, p, o, interval, false)
	}
	for _, o := range col.VLines {
		r.object(c, p, o, interval, false)
	}
	for _, o := range col.Trends {
		r.object(c, p, o, interval, false)
	}
	for _, o := range col.Rays {
		r.object(c, p, o, interval, false)
	}
	for _, o := range col.Ranges {
		r.object(c, p, o, interval, false)
	}
	for _, o := range col.Positions {
		r.object(c, p, o, interval, false)
	}
}

func (r *Renderer) object(c Canvas, p Projection, obj drawing.Object, interval time.Duration, preview bool) {
	st := Style{Color: r.theme.Drawing, Width: 1.5}
	if preview {
		st = Style{Color: r.theme.Preview, Width: 1, Dash: []float64{4, 3}}
	}
	label := Style{Color: st.Color, FontSize: 11}

	switch o := obj.(type) {
	case drawing.HLine:
		y := p.Y(o.Price)
		c.Line(p.Plot.Left, y, p.Plot.Right, y, st)
		c.Text(p.Plot.Right-4, y-4, FormatPrice(o.Price), Style{Color: st.Color, FontSize: 11, Anchor: "end"})

	case drawing.VLine:
		x := p.XForTime(o.Time)
		c.Line(x, p.Plot.Top, x, p.Plot.Bottom, st)

	case drawing.TrendLine:
		c.Line(p.XForTime(o.From.Time), p.Y(o.From.Price), p.XForTime(o.To.Time), p.Y(o.To.Price), st)

	case drawing.Ray:
		x1, y1 := p.XForTime(o.From.Time), p.Y(o.From.Price)
		x2, y2 := p.XForTime(o.To.Time), p.Y(o.To.Price)
		switch {
		case x2 > x1:
			y2 = y1 + (y2-y1)*(p.Plot.Right-x1)/(x2-x1)
			x2 = p.Plot.Right
		case x2 < x1:
			y2 = y1 + (y2-y1)*(p.Plot.Left-x1)/(x2-x1)
			x2 = p.Plot.Left
		}
		c.Line(x1, y1, x2, y2, st)

	case drawing.RangeMeasure:
		x1, y1 := p.XForTime(o.From.Time), p.Y(o.From.Price)
		x2, y2 := p.XForTime(o.To.Time), p.Y(o.To.Price)
		c.StrokeRect(math.Min(x1, x2), math.Min(y1, y2), math.Abs(x2-x1), math.Abs(y2-y1), st)
		m := o.Measure(interval)
		text := fmt.Sprintf("%s (%+.2f%%) %d bars", signedPrice(m.Delta), m.Percent, m.Bars)
		if o.DatePrice {
			text += " " + formatSpan(time.Duration(m.Bars)*interval)
		}
		c.Text((x1+x2)/2, math.Min(y1, y2)-4, text, Style{Color: st.Color, FontSize: 11, Anchor: "middle"})

	case drawing.Position:
		x := p.XForTime(o.Time)
		w := p.Plot.Right - x
		entry, stop, target := p.Y(o.Entry), p.Y(o.Stop), p.Y(o.Target)
		reward, risk := r.theme.Reward, r.theme.Risk
		if preview {
			reward, risk = r.theme.Preview, r.theme.Preview
		}
		c.StrokeRect(x, math.Min(entry, target), w, math.Abs(target-entry), Style{Color: reward, Width: st.Width, Dash: st.Dash})
		c.StrokeRect(x, math.Min(entry, stop), w, math.Abs(stop-entry), Style{Color: risk, Width: st.Width, Dash: st.Dash})
		c.Line(x, entry, x+w, entry, st)
		c.Text(x+4, entry-4, fmt.Sprintf("%s %s RR %.2f", o.Side, FormatPrice(o.Entry), o.RewardRisk()), label)
	}
}

func (r *Renderer) crosshair(c Canvas, p Projection, s Scene) {
	idx := p.End - 1
	if ptr := s.Pointer; ptr != nil && p.Plot.Contains(ptr.X, ptr.Y) {
		st := Style{Color: r.theme.Crosshair, Width: 1, Dash: []float64{3, 3}}
		c.Line(ptr.X, p.Plot.Top, ptr.X, p.Plot.Bottom, st)
		c.Line(p.Plot.Left, ptr.Y, p.Plot.Right, ptr.Y, st)
		c.Text(p.Plot.Right+6, ptr.Y+4, FormatPrice(p.Price(ptr.Y)), Style{Color: r.theme.Crosshair, FontSize: 11})
		if i, ok := p.IndexAt(ptr.X); ok {
			idx = i
		}
	}
	k := s.Candles[idx]
	c.Text(p.Plot.Left+4, p.Plot.Top+14, fmt.Sprintf("O %s H %s L %s C %s",
		FormatPrice(k.Open), FormatPrice(k.High), FormatPrice(k.Low), FormatPrice(k.Close)),
		Style{Color: r.theme.Text, FontSize: 11})
}

func (r *Renderer) livePrice(c Canvas, p Projection, price float64, dir quotes.Direction) {
	if !market.Valid(price) {
		return
	}
	color := r.theme.LiveFlat
	switch dir {
	case quotes.Up:
		color = r.theme.LiveUp
	case quotes.Down:
		color = r.theme.LiveDown
	}
	y := math.Min(math.Max(p.Y(price), p.Plot.Top), p.Plot.Bottom)
	c.Line(p.Plot.Left, y, p.Plot.Right, y, Style{Color: color, Width: 1, Dash: []float64{4, 4}})
	c.FillRect(p.Plot.Right, y-9, r.layout.PriceAxis, 18, color)
	c.Text(p.Plot.Right+6, y+4, FormatPrice(price), Style{Color: "#ffffff", FontSize: 11})
}

// FormatPrice prints p with precision that suits its magnitude.
func FormatPrice(p float64) string {
	a := math.Abs(p)
	switch {
	case a >= 1000:
		return strconv.FormatFloat(p, 'f', 2, 64)
	case a >= 10:
		return strconv.FormatFloat(p, 'f', 3, 64)
	case a >= 1:
		return strconv.FormatFloat(p, 'f', 4, 64)
	}
	return strconv.FormatFloat(p, 'f', 6, 64)
}

func signedPrice(v float64) string {
	if v >= 0 {
		return "+" + FormatPrice(v)
	}
	return FormatPrice(v)
}

func formatTime(t time.Time, interval time.Duration) string {
	if interval >= 24*time.Hour {
		return t.UTC().Format("Jan 02")
	}
	return t.UTC().Format("15:04")
}

func formatSpan(d time.Duration) string {
	if d >= 24*time.Hour {
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
