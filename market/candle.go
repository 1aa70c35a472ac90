package market

import "time"

// Candle is one OHLC bar. Time is the bucket start.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// NewCandle opens a bar where every price equals p.
func NewCandle(bucket time.Time, p float64) Candle {
	return Candle{Time: bucket, Open: p, High: p, Low: p, Close: p}
}

// Apply folds a trade price into the bar.
func (c *Candle) Apply(p float64) {
	if p > c.High {
		c.High = p
	}
	if p < c.Low {
		c.Low = p
	}
	c.Close = p
}

// Valid reports whether the bar has a usable close.
func (c Candle) Valid() bool {
	return Valid(c.Close) && !c.Time.IsZero()
}

// Bullish is true when the bar closed at or above its open.
func (c Candle) Bullish() bool { return c.Close >= c.Open }
