package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle bucket width.
type Timeframe int32

// Timeframe values are the bucket width in seconds.
const (
	M1  Timeframe = 60
	M5  Timeframe = 300
	M15 Timeframe = 900
	M30 Timeframe = 1800
	H1  Timeframe = 3600
	H4  Timeframe = 14400
	D1  Timeframe = 86400
)

// Timeframes lists the supported timeframes, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{M1, M5, M15, M30, H1, H4, D1}
}

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Second
}

func (tf Timeframe) String() string {
	sec := int32(tf)
	switch {
	case sec <= 0:
		return "invalid"
	case sec < 3600 && sec%60 == 0:
		return fmt.Sprintf("M%d", sec/60)
	case sec < 86400 && sec%3600 == 0:
		return fmt.Sprintf("H%d", sec/3600)
	case sec%86400 == 0:
		return fmt.Sprintf("D%d", sec/86400)
	}
	return fmt.Sprintf("%ds", sec)
}

// Interval is the history service's name for the timeframe ("5m", "1h", "1d").
func (tf Timeframe) Interval() string {
	sec := int32(tf)
	switch {
	case sec < 3600:
		return fmt.Sprintf("%dm", sec/60)
	case sec < 86400:
		return fmt.Sprintf("%dh", sec/3600)
	}
	return fmt.Sprintf("%dd", sec/86400)
}

// Bucket returns the start of the bucket containing t.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	ms := tf.Duration().Milliseconds()
	if ms <= 0 {
		return t
	}
	b := (t.UnixMilli() / ms) * ms
	if t.UnixMilli() < 0 && t.UnixMilli()%ms != 0 {
		b -= ms
	}
	return time.UnixMilli(b).UTC()
}

// ParseTimeframe accepts "M5", "5m", "5min", "H1", "1h", "D1", "1d".
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m1", "1m", "1min":
		return M1, nil
	case "m5", "5m", "5min":
		return M5, nil
	case "m15", "15m", "15min":
		return M15, nil
	case "m30", "30m", "30min":
		return M30, nil
	case "h1", "1h", "60m", "60min":
		return H1, nil
	case "h4", "4h":
		return H4, nil
	case "d1", "1d", "d":
		return D1, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", s)
	}
}

func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

func (tf *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*tf = v
	return nil
}
