// Package indicators computes the moving-average overlays drawn over candles.
package indicators

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rustyeddy/tradedesk/market"
)

// Indicator is a streaming indicator over candle closes.
type Indicator interface {
	Name() string
	Warmup() int
	Reset()
	Update(c market.Candle)
	Ready() bool
	Value() float64
}

// SimpleMA is a streaming simple moving average.
type SimpleMA struct {
	period int
	window []float64
	sum    float64
}

func NewSMA(period int) *SimpleMA {
	if period <= 0 {
		period = 1
	}
	return &SimpleMA{period: period, window: make([]float64, 0, period)}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SimpleMA) Warmup() int  { return m.period }
func (m *SimpleMA) Ready() bool  { return len(m.window) >= m.period }

func (m *SimpleMA) Reset() {
	m.window = m.window[:0]
	m.sum = 0
}

func (m *SimpleMA) Update(c market.Candle) {
	m.window = append(m.window, c.Close)
	m.sum += c.Close
	if len(m.window) > m.period {
		m.sum -= m.window[0]
		m.window = m.window[1:]
	}
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(len(m.window))
}

// ExponentialMA is a streaming EMA seeded with the SMA of its first period
// closes.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	if period <= 0 {
		period = 1
	}
	return &ExponentialMA{period: period, multiplier: 2.0 / float64(period+1)}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *ExponentialMA) Warmup() int  { return e.period }
func (e *ExponentialMA) Ready() bool  { return e.count >= e.period }
func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

func (e *ExponentialMA) Reset() {
	e.ema, e.count, e.warmupSum = 0, 0, 0
}

func (e *ExponentialMA) Update(c market.Candle) {
	e.count++
	if e.count <= e.period {
		e.warmupSum += c.Close
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (c.Close-e.ema)*e.multiplier + e.ema
}

// Series runs ind over candles and returns one value per candle; entries
// before the warmup completes are NaN.
func Series(ind Indicator, candles []market.Candle) []float64 {
	ind.Reset()
	out := make([]float64, len(candles))
	for i, c := range candles {
		ind.Update(c)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Parse builds an indicator from "ema:20" or "sma:50".
func Parse(spec string) (Indicator, error) {
	kind, arg, ok := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	if !ok {
		return nil, fmt.Errorf("indicator %q: want kind:period", spec)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("indicator %q: bad period", spec)
	}
	switch kind {
	case "ema":
		return NewEMA(n), nil
	case "sma", "ma":
		return NewSMA(n), nil
	}
	return nil, fmt.Errorf("indicator %q: unknown kind %q", spec, kind)
}
