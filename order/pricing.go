// Package order computes margin, affordable volume and profit for the order
// ticket, and drives the ticket from open to submitted.
package order

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradedesk/market"
)

const (
	// ProfitRate is the share of entry margin gained or lost per unit of
	// price movement.
	ProfitRate = 0.10
	// VolumeStep is the smallest volume increment.
	VolumeStep = 0.01
	// RelockWindow is how long a locked price is honored before it is
	// captured again.
	RelockWindow = 30 * time.Second
)

// LotSizes maps a category to its contract multiplier.
type LotSizes map[market.Category]float64

// For returns the lot size of cat, or 1 when it is missing or invalid.
func (l LotSizes) For(cat market.Category) float64 {
	if v, ok := l[cat]; ok && market.Valid(v) {
		return v
	}
	return 1
}

// ReferencePrice prefers the locked price, then the live quote, then the
// price inferred from the instrument record.
func ReferencePrice(locked, live float64, inst market.Instrument) (float64, bool) {
	if market.Valid(locked) {
		return locked, true
	}
	if market.Valid(live) {
		return live, true
	}
	return inst.InferPrice()
}

// Margin is volume * lot * price, rounded to cents.
func Margin(volume, lot, price float64) float64 {
	if !finite(volume) || !finite(lot) || !finite(price) {
		return 0
	}
	return dec(volume).Mul(dec(lot)).Mul(dec(price)).Round(2).InexactFloat64()
}

// MaxVolume is the largest volume balance can pay for, floored to
// VolumeStep. It reports false when no maximum is computable.
func MaxVolume(balance, lot, price float64) (float64, bool) {
	if !finite(balance) || !market.Valid(lot) || !market.Valid(price) {
		return 0, false
	}
	if balance <= 0 {
		return 0, true
	}
	v := dec(balance).Div(dec(lot).Mul(dec(price)))
	return floorStep(v, VolumeStep), true
}

// ClampVolume floors v to the step and clamps it to [VolumeStep, limit].
// Exceeding limit reports insufficient balance instead of failing. The result
// never drops below VolumeStep, even when limit does.
func ClampVolume(v, limit float64, hasMax bool) (clamped float64, insufficient bool) {
	if !finite(v) {
		v = 0
	}
	v = FloorStep(v, VolumeStep)
	if v < VolumeStep {
		v = VolumeStep
	}
	if hasMax && v > limit {
		return max(limit, VolumeStep), true
	}
	return v, false
}

// PnL applies the synthetic CFD rule: every unit of price movement is worth
// ProfitRate of the margin at entry. The result is rounded to cents.
func PnL(side market.Side, entry, volume, lot, ref float64) float64 {
	if !finite(entry) || !finite(volume) || !finite(lot) || !finite(ref) {
		return 0
	}
	diff := dec(ref).Sub(dec(entry))
	if side == market.Sell {
		diff = diff.Neg()
	}
	perMove := dec(entry).Mul(dec(volume)).Mul(dec(lot)).Mul(dec(ProfitRate))
	return diff.Mul(perMove).Round(2).InexactFloat64()
}

func Round2(v float64) float64 { return round(v, 2) }

// Round6 is the precision of submitted prices.
func Round6(v float64) float64 { return round(v, 6) }

// FloorStep rounds v down to a multiple of step.
func FloorStep(v, step float64) float64 {
	if !finite(v) || step <= 0 {
		return v
	}
	return floorStep(dec(v), step)
}

func floorStep(v decimal.Decimal, step float64) float64 {
	s := dec(step)
	return v.Div(s).Floor().Mul(s).InexactFloat64()
}

func round(v float64, places int32) float64 {
	if !finite(v) {
		return v
	}
	return dec(v).Round(places).InexactFloat64()
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
