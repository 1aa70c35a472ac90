// Package chart holds the candle chart's viewport state and renderer.
//
// Everything here works on a read-only copy of the candle buffer. Pixel
// coordinates grow right and down; the price band of a Rect maps its Bottom
// edge to the lowest price.
package chart

import (
	"math"

	"github.com/rustyeddy/tradedesk/market"
)

// Padding is the fraction of the visible price range added above and below.
const Padding = 0.03

type Rect struct {
	Left, Top, Right, Bottom float64
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }

func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// YFor maps price v in [lo, hi] onto the vertical band of r.
func YFor(v float64, r Rect, lo, hi float64) float64 {
	if hi == lo {
		return (r.Top + r.Bottom) / 2
	}
	return r.Bottom - (v-lo)/(hi-lo)*(r.Bottom-r.Top)
}

// PriceFromY is the inverse of YFor.
func PriceFromY(y float64, r Rect, lo, hi float64) float64 {
	h := r.Bottom - r.Top
	if h == 0 {
		return lo
	}
	return lo + (r.Bottom-y)/h*(hi-lo)
}

// Bounds returns the lowest low and highest high of window, padded by
// Padding of the range. A flat window is padded by Padding of its price.
func Bounds(window []market.Candle) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range window {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	if len(window) == 0 || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, false
	}

	pad := (hi - lo) * Padding
	if pad == 0 {
		pad = math.Abs(hi) * Padding
		if pad == 0 {
			pad = 1
		}
	}
	return lo - pad, hi + pad, true
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1
	}
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	switch f := raw / base; {
	case f <= 1:
		return base
	case f <= 2:
		return 2 * base
	case f <= 5:
		return 5 * base
	}
	return 10 * base
}

// PriceTicks returns evenly spaced round prices inside [lo, hi], aiming for
// about n of them.
func PriceTicks(lo, hi float64, n int) []float64 {
	if n <= 0 || hi <= lo {
		return nil
	}
	step := niceStep((hi - lo) / float64(n))
	var out []float64
	for v := math.Ceil(lo/step) * step; v <= hi; v += step {
		out = append(out, v)
		if len(out) > 4*n {
			break
		}
	}
	return out
}
