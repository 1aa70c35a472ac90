package chart

import "math"

const (
	DefaultCandlesOnScreen = 80
	DefaultMinBars         = 20
	// ZoomStep is the fraction of visible bars added or removed per zoom.
	ZoomStep = 0.10
)

// Viewport is the visible window: the last CandlesOnScreen candles, shifted
// PanOffset candles back from the newest one.
type Viewport struct {
	CandlesOnScreen int `json:"candles_on_screen"`
	PanOffset       int `json:"pan_offset"`
	MinBars         int `json:"min_bars,omitempty"`
}

func NewViewport(candlesOnScreen int) Viewport {
	v := Viewport{CandlesOnScreen: candlesOnScreen, MinBars: DefaultMinBars}
	v.normalize()
	return v
}

func (v *Viewport) normalize() {
	if v.MinBars <= 0 {
		v.MinBars = DefaultMinBars
	}
	if v.CandlesOnScreen <= 0 {
		v.CandlesOnScreen = DefaultCandlesOnScreen
	}
	if v.CandlesOnScreen < v.MinBars {
		v.CandlesOnScreen = v.MinBars
	}
}

// MaxPan is the largest valid PanOffset for total candles.
func (v Viewport) MaxPan(total int) int {
	if m := total - v.CandlesOnScreen; m > 0 {
		return m
	}
	return 0
}

// Clamp enforces MinBars and 0 <= PanOffset <= MaxPan(total).
func (v *Viewport) Clamp(total int) {
	v.normalize()
	if v.PanOffset > v.MaxPan(total) {
		v.PanOffset = v.MaxPan(total)
	}
	if v.PanOffset < 0 {
		v.PanOffset = 0
	}
}

// Window returns the half-open index range [start, end) of visible candles.
func (v Viewport) Window(total int) (start, end int) {
	v.Clamp(total)
	end = total - v.PanOffset
	start = end - v.CandlesOnScreen
	if start < 0 {
		start = 0
	}
	return start, end
}

// ZoomIn shows ZoomStep fewer bars, at least one fewer, never below MinBars.
func (v *Viewport) ZoomIn(total int) {
	v.normalize()
	n := int(math.Round(float64(v.CandlesOnScreen) * (1 - ZoomStep)))
	if n >= v.CandlesOnScreen {
		n = v.CandlesOnScreen - 1
	}
	v.CandlesOnScreen = n
	v.Clamp(total)
}

// ZoomOut shows ZoomStep more bars, at least one more, never more than the
// buffer holds (unless that is below MinBars).
func (v *Viewport) ZoomOut(total int) {
	v.normalize()
	n := int(math.Round(float64(v.CandlesOnScreen) * (1 + ZoomStep)))
	if n <= v.CandlesOnScreen {
		n = v.CandlesOnScreen + 1
	}
	if limit := max(total, v.MinBars); n > limit {
		n = max(limit, v.CandlesOnScreen)
	}
	v.CandlesOnScreen = n
	v.Clamp(total)
}

// Pan shifts the window by a horizontal drag of dx pixels. Dragging right
// (dx > 0) reveals older candles.
func (v *Viewport) Pan(dx, candleWidth float64, total int) {
	if candleWidth <= 0 || math.IsNaN(dx) || math.IsInf(dx, 0) {
		return
	}
	v.PanOffset += int(math.Round(dx / candleWidth))
	v.Clamp(total)
}

// PanFrom sets the offset to start shifted by a drag of dx pixels, for drags
// measured from the pointer-down position.
func (v *Viewport) PanFrom(start int, dx, candleWidth float64, total int) {
	v.PanOffset = start
	v.Pan(dx, candleWidth, total)
}
