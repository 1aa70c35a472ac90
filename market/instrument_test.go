package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Instrument
		want float64
		ok   bool
	}{
		{"price wins", Instrument{Price: 10, Bid: 9, Ask: 11, Close: 8}, 10, true},
		{"mid", Instrument{Bid: 9, Ask: 11}, 10, true},
		{"bid only", Instrument{Bid: 9}, 9, true},
		{"ask only", Instrument{Ask: 11}, 11, true},
		{"close", Instrument{Close: 8}, 8, true},
		{"nan skipped", Instrument{Price: math.NaN(), Close: 8}, 8, true},
		{"nothing", Instrument{}, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.in.InferPrice()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		assert.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCategory("bonds")
	assert.Error(t, err)
}

func TestCandleApply(t *testing.T) {
	t.Parallel()

	c := NewCandle(M1.Bucket(time.Unix(1_700_000_000, 0)), 10)
	c.Apply(12)
	c.Apply(9)
	c.Apply(11)
	assert.Equal(t, Candle{Time: c.Time, Open: 10, High: 12, Low: 9, Close: 11}, c)
	assert.True(t, c.Bullish())
}
