package drawing

import (
	"math"
	"time"
)

// Point is a chart location in data coordinates.
type Point struct {
	Time  time.Time
	Price float64
}

// Kind names an object type.
type Kind string

const (
	KindHLine    Kind = "hline"
	KindVLine    Kind = "vline"
	KindTrend    Kind = "trend"
	KindRay      Kind = "ray"
	KindRange    Kind = "range"
	KindDPRange  Kind = "dprange"
	KindPosition Kind = "position"
)

// Object is a finalized drawing. Objects are never edited after creation.
type Object interface {
	ObjectID() string
	Kind() Kind
}

type HLine struct {
	ID    string
	Price float64
}

type VLine struct {
	ID   string
	Time time.Time
}

type TrendLine struct {
	ID       string
	From, To Point
}

// Ray starts at From, passes through To and extends to the right edge.
type Ray struct {
	ID       string
	From, To Point
}

// RangeMeasure is a rectangle annotated with price change, percent change and
// bar count. DatePrice marks the date-price variant of the tool.
type RangeMeasure struct {
	ID        string
	From, To  Point
	DatePrice bool
}

type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Position is a long or short position box.
type Position struct {
	ID     string
	Side   Side
	Time   time.Time
	Entry  float64
	Stop   float64
	Target float64
}

func (o HLine) ObjectID() string        { return o.ID }
func (o VLine) ObjectID() string        { return o.ID }
func (o TrendLine) ObjectID() string    { return o.ID }
func (o Ray) ObjectID() string          { return o.ID }
func (o RangeMeasure) ObjectID() string { return o.ID }
func (o Position) ObjectID() string     { return o.ID }

func (HLine) Kind() Kind     { return KindHLine }
func (VLine) Kind() Kind     { return KindVLine }
func (TrendLine) Kind() Kind { return KindTrend }
func (Ray) Kind() Kind       { return KindRay }
func (Position) Kind() Kind  { return KindPosition }

func (o RangeMeasure) Kind() Kind {
	if o.DatePrice {
		return KindDPRange
	}
	return KindRange
}

// Measure is the annotation of a RangeMeasure.
type Measure struct {
	Delta   float64
	Percent float64
	Bars    int
}

// Measure computes the price delta, the percent change relative to From and
// the number of bars of width interval between the two points.
func (o RangeMeasure) Measure(interval time.Duration) Measure {
	m := Measure{Delta: o.To.Price - o.From.Price}
	if o.From.Price != 0 {
		m.Percent = m.Delta / o.From.Price * 100
	}
	if interval > 0 {
		span := o.To.Time.Sub(o.From.Time)
		if span < 0 {
			span = -span
		}
		m.Bars = int(math.Round(float64(span) / float64(interval)))
	}
	return m
}

// RewardRisk is the distance to target divided by the distance to stop.
func (o Position) RewardRisk() float64 {
	risk := math.Abs(o.Entry - o.Stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(o.Target-o.Entry) / risk
}

// Collection holds every finalized drawing, one ordered slice per type.
type Collection struct {
	HLines    []HLine
	VLines    []VLine
	Trends    []TrendLine
	Rays      []Ray
	Ranges    []RangeMeasure
	Positions []Position
}

func (c *Collection) add(o Object) {
	switch v := o.(type) {
	case HLine:
		c.HLines = append(c.HLines, v)
	case VLine:
		c.VLines = append(c.VLines, v)
	case TrendLine:
		c.Trends = append(c.Trends, v)
	case Ray:
		c.Rays = append(c.Rays, v)
	case RangeMeasure:
		c.Ranges = append(c.Ranges, v)
	case Position:
		c.Positions = append(c.Positions, v)
	}
}

func (c Collection) Len() int {
	return len(c.HLines) + len(c.VLines) + len(c.Trends) + len(c.Rays) + len(c.Ranges) + len(c.Positions)
}

func (c Collection) clone() Collection {
	return Collection{
		HLines:    append([]HLine(nil), c.HLines...),
		VLines:    append([]VLine(nil), c.VLines...),
		Trends:    append([]TrendLine(nil), c.Trends...),
		Rays:      append([]Ray(nil), c.Rays...),
		Ranges:    append([]RangeMeasure(nil), c.Ranges...),
		Positions: append([]Position(nil), c.Positions...),
	}
}
