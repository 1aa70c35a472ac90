package workstation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/chart"
	"github.com/rustyeddy/tradedesk/drawing"
	"github.com/rustyeddy/tradedesk/indicators"
	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/prefs"
	"github.com/rustyeddy/tradedesk/symbol"
)

// Viewport is the current zoom and pan, clamped to the buffer. The stored
// pan offset is left alone, so a restored offset survives frames drawn
// before history arrives.
func (w *Workstation) Viewport() chart.Viewport {
	total := w.candles.Len()
	w.mu.RLock()
	defer w.mu.RUnlock()
	vp := w.viewport
	vp.Clamp(total)
	return vp
}

func (w *Workstation) ZoomIn() {
	w.viewOp(func(v *chart.Viewport, total int) { v.ZoomIn(total) })
}

func (w *Workstation) ZoomOut() {
	w.viewOp(func(v *chart.Viewport, total int) { v.ZoomOut(total) })
}

// Pan scrolls by dx pixels. Positive dx reveals older candles.
func (w *Workstation) Pan(dx float64) {
	w.viewOp(func(v *chart.Viewport, total int) { v.Pan(dx, w.slotWidth(), total) })
}

// DragStart anchors a drag at the current pan offset.
func (w *Workstation) DragStart() {
	total := w.candles.Len()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.viewport.Clamp(total)
	start := w.viewport.PanOffset
	w.drag = &start
}

// DragMove pans to dx pixels away from where the drag started.
func (w *Workstation) DragMove(dx float64) {
	w.viewOp(func(v *chart.Viewport, total int) {
		if w.drag != nil {
			v.PanFrom(*w.drag, dx, w.slotWidth(), total)
		}
	})
}

func (w *Workstation) DragEnd() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drag = nil
}

// viewOp runs fn on the viewport with w.mu held.
func (w *Workstation) viewOp(fn func(v *chart.Viewport, total int)) {
	total := w.candles.Len()
	w.mu.Lock()
	fn(&w.viewport, total)
	w.mu.Unlock()
	w.redraw.Request()
}

// slotWidth is the pixel width of one candle. Callers hold w.mu.
func (w *Workstation) slotWidth() float64 {
	if w.projOK {
		return w.proj.SlotWidth()
	}
	plot := w.renderer.Plot(w.settings.Width, w.settings.Height)
	return plot.Width() / float64(max(1, w.viewport.CandlesOnScreen))
}

func (w *Workstation) resetView() {
	w.mu.Lock()
	w.viewport.PanOffset = 0
	w.drag = nil
	w.projOK = false
	w.mu.Unlock()
	w.redraw.Request()
}

// SetTool selects a drawing tool and drops any half-finished gesture.
func (w *Workstation) SetTool(t drawing.Tool) {
	w.machine.SetTool(t)
	w.redraw.Request()
}

func (w *Workstation) Tool() drawing.Tool { return w.machine.Tool() }

func (w *Workstation) CancelTool() {
	w.machine.Cancel()
	w.redraw.Request()
}

func (w *Workstation) ClearDrawings() {
	w.machine.Clear()
	w.redraw.Request()
}

func (w *Workstation) Drawings() drawing.Collection { return w.machine.Objects() }

// Click feeds a chart click at pixel (x, y) to the drawing tool. It reports
// the object when the click completes a gesture. Clicks outside the plot or
// on an empty chart are ignored.
func (w *Workstation) Click(x, y float64) (drawing.Object, bool) {
	p, ok := w.projection()
	if !ok || !p.Plot.Contains(x, y) {
		return nil, false
	}
	obj, done := w.machine.Click(p.PointAt(x, y))
	w.redraw.Request()
	return obj, done
}

// PointerMove places the crosshair and the drawing preview.
func (w *Workstation) PointerMove(x, y float64) {
	w.mu.Lock()
	w.pointer = &chart.Pointer{X: x, Y: y}
	w.mu.Unlock()
	w.redraw.Request()
}

func (w *Workstation) PointerLeave() {
	w.mu.Lock()
	w.pointer = nil
	w.mu.Unlock()
	w.redraw.Request()
}

// projection is the one used by the last frame, or a fresh one when nothing
// has been drawn since the view changed.
func (w *Workstation) projection() (chart.Projection, bool) {
	w.mu.RLock()
	p, ok := w.proj, w.projOK
	vp := w.viewport
	w.mu.RUnlock()
	if ok {
		return p, true
	}
	cs := w.candles.Candles()
	vp.Clamp(len(cs))
	plot := w.renderer.Plot(w.settings.Width, w.settings.Height)
	return chart.Project(plot, cs, vp, w.candles.Selection().Timeframe.Duration())
}

// Scene assembles one frame: the buffer, overlays, drawings, the preview
// under the pointer and the live price.
func (w *Workstation) Scene() chart.Scene {
	cs := w.candles.Candles()
	sel := w.candles.Selection()

	w.mu.Lock()
	vp := w.viewport
	vp.Clamp(len(cs))
	var ptr *chart.Pointer
	if w.pointer != nil {
		p := *w.pointer
		ptr = &p
	}
	w.mu.Unlock()

	s := chart.Scene{
		Title:    fmt.Sprintf("%s %s", sel.Symbol, sel.Timeframe),
		Candles:  cs,
		Viewport: vp,
		Interval: sel.Timeframe.Duration(),
		Drawings: w.machine.Objects(),
		Pointer:  ptr,
	}
	for _, spec := range w.settings.Overlays {
		ind, err := indicators.Parse(spec)
		if err != nil {
			continue
		}
		s.Overlays = append(s.Overlays, chart.Overlay{Name: ind.Name(), Values: indicators.Series(ind, cs)})
	}

	k := symbol.Normalize(sel.Symbol)
	if q, ok := w.cache.Quote(k); ok {
		s.LivePrice = q.Price
		s.Direction = w.cache.Direction(k)
	} else if last, ok := w.candles.Last(); ok {
		s.LivePrice = last.Close
	}

	if ptr != nil {
		if p, ok := w.projection(); ok && p.Plot.Contains(ptr.X, ptr.Y) {
			if obj, ok := w.machine.Preview(p.PointAt(ptr.X, ptr.Y)); ok {
				s.Preview = obj
			}
		}
	}
	return s
}

// Render draws the current scene onto c and keeps its projection for
// pointer input.
func (w *Workstation) Render(c chart.Canvas) (chart.Projection, bool) {
	p, ok := w.renderer.Draw(c, w.Scene())
	w.mu.Lock()
	w.proj, w.projOK = p, ok
	w.mu.Unlock()
	return p, ok
}

// Frame draws onto the configured canvas if a redraw is pending.
func (w *Workstation) Frame() bool { return w.redraw.Frame() }

// Dirty reports whether a redraw has been requested since the last frame.
func (w *Workstation) Dirty() bool { return w.redraw.Pending() }

func (w *Workstation) frame() {
	if w.canvas == nil {
		return
	}
	if r, ok := w.canvas.(interface{ Reset() }); ok {
		r.Reset()
	}
	w.Render(w.canvas)
	if w.onFrame != nil {
		w.onFrame(w.canvas)
	}
}

// View is the state saved between sessions.
func (w *Workstation) View() prefs.ViewState {
	sel := w.candles.Selection()

	w.mu.RLock()
	defer w.mu.RUnlock()
	vp := w.viewport
	tabs := make([]string, len(w.tabs))
	for i, t := range w.tabs {
		tabs[i] = t.String()
	}
	return prefs.ViewState{
		Category:        w.category,
		Symbol:          sel.Symbol,
		Timeframe:       sel.Timeframe,
		CandlesOnScreen: vp.CandlesOnScreen,
		PanOffset:       vp.PanOffset,
		Tabs:            tabs,
		BalanceMode:     w.balance,
	}
}

func (w *Workstation) saveView(ctx context.Context) error {
	if w.views == nil {
		return nil
	}
	return w.views.SaveView(ctx, w.View())
}

// restoreView applies a saved view and returns the instrument and timeframe
// to chart. Invalid saved fields fall back to the settings.
func (w *Workstation) restoreView(ctx context.Context) (string, market.Timeframe) {
	sym, tf := w.settings.Symbol, w.settings.Timeframe
	if w.views == nil {
		return sym, tf
	}
	v, ok, err := w.views.LoadView(ctx)
	if err != nil {
		w.log.Warn("load saved view failed", zap.Error(err))
		return sym, tf
	}
	if !ok {
		return sym, tf
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if cat, err := market.ParseCategory(v.Category.String()); err == nil {
		w.category = cat
	}
	var tabs []market.Category
	for _, raw := range v.Tabs {
		if cat, err := market.ParseCategory(raw); err == nil {
			tabs = append(tabs, cat)
		}
	}
	if len(tabs) > 0 {
		w.tabs = tabs
	}
	if !containsCategory(w.tabs, w.category) {
		w.tabs = append(w.tabs, w.category)
	}
	if v.CandlesOnScreen > 0 {
		w.viewport.CandlesOnScreen = v.CandlesOnScreen
		w.viewport.PanOffset = max(0, v.PanOffset)
	}
	switch v.BalanceMode {
	case prefs.BalanceReal, prefs.BalanceDemo:
		w.balance = v.BalanceMode
	}
	if symbol.Normalize(v.Symbol) != "" {
		sym = v.Symbol
	}
	if v.Timeframe > 0 {
		tf = v.Timeframe
	}
	return sym, tf
}

func containsCategory(cats []market.Category, c market.Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}
