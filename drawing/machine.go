// Package drawing captures multi-click chart gestures and turns them into
// immutable drawing objects.
package drawing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rustyeddy/tradedesk/pkg/id"
)

// Tool is the active drawing tool.
type Tool int

const (
	None Tool = iota
	HLineTool
	VLineTool
	TrendTool
	RangeTool
	RayTool
	DPRangeTool
	LongTool
	ShortTool
)

var toolNames = map[Tool]string{
	None:        "none",
	HLineTool:   "hline",
	VLineTool:   "vline",
	TrendTool:   "trend",
	RangeTool:   "range",
	RayTool:     "ray",
	DPRangeTool: "dprange",
	LongTool:    "long",
	ShortTool:   "short",
}

func (t Tool) String() string {
	if s, ok := toolNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tool(%d)", int(t))
}

func ParseTool(s string) (Tool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "idle" {
		return None, nil
	}
	for t, name := range toolNames {
		if name == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("unknown drawing tool %q", s)
}

// Clicks is the number of clicks needed to finalize an object.
func (t Tool) Clicks() int {
	switch t {
	case HLineTool, VLineTool:
		return 1
	case TrendTool, RangeTool, RayTool, DPRangeTool:
		return 2
	case LongTool, ShortTool:
		return 3
	}
	return 0
}

// State is the pending gesture. Only the types below implement it.
type State interface{ pending() }

// Idle means no gesture is in progress.
type Idle struct{}

// AwaitingPoint2 holds the first anchor of a two-click tool.
type AwaitingPoint2 struct{ Anchor Point }

// AwaitingStop holds the entry of a position tool.
type AwaitingStop struct{ Entry Point }

// AwaitingTarget holds entry and stop of a position tool.
type AwaitingTarget struct {
	Entry Point
	Stop  float64
}

func (Idle) pending()           {}
func (AwaitingPoint2) pending() {}
func (AwaitingStop) pending()   {}
func (AwaitingTarget) pending() {}

// Machine is the drawing tool state machine of one chart.
type Machine struct {
	mu    sync.Mutex
	tool  Tool
	state State
	objs  Collection
	newID id.Generator
}

type Option func(*Machine)

// WithIDs replaces the ULID generator.
func WithIDs(g id.Generator) Option {
	return func(m *Machine) { m.newID = g }
}

func NewMachine(opts ...Option) *Machine {
	m := &Machine{state: Idle{}, newID: id.New}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetTool selects a tool and discards any pending gesture.
func (m *Machine) SetTool(t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tool = t
	m.state = Idle{}
}

func (m *Machine) Tool() Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cancel discards the pending gesture and keeps the tool.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Idle{}
}

// Clear removes every object and the pending gesture.
func (m *Machine) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs = Collection{}
	m.state = Idle{}
}

// Objects returns a copy of the finalized drawings.
func (m *Machine) Objects() Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objs.clone()
}

// Click advances the gesture with a point already converted to data
// coordinates. It returns the object when the click completes one.
func (m *Machine) Click(p Point) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var obj Object
	switch st := m.state.(type) {
	case Idle:
		switch m.tool {
		case None:
			return nil, false
		case HLineTool:
			obj = HLine{ID: m.newID(), Price: p.Price}
		case VLineTool:
			obj = VLine{ID: m.newID(), Time: p.Time}
		case TrendTool, RangeTool, RayTool, DPRangeTool:
			m.state = AwaitingPoint2{Anchor: p}
			return nil, false
		case LongTool, ShortTool:
			m.state = AwaitingStop{Entry: p}
			return nil, false
		}
	case AwaitingPoint2:
		obj = m.twoPoint(m.newID(), st.Anchor, p)
	case AwaitingStop:
		m.state = AwaitingTarget{Entry: st.Entry, Stop: p.Price}
		return nil, false
	case AwaitingTarget:
		obj = m.position(m.newID(), st.Entry, st.Stop, p.Price)
	}

	m.state = Idle{}
	if obj == nil {
		return nil, false
	}
	m.objs.add(obj)
	return obj, true
}

func (m *Machine) twoPoint(oid string, a, b Point) Object {
	switch m.tool {
	case RayTool:
		return Ray{ID: oid, From: a, To: b}
	case RangeTool:
		return RangeMeasure{ID: oid, From: a, To: b}
	case DPRangeTool:
		return RangeMeasure{ID: oid, From: a, To: b, DatePrice: true}
	}
	return TrendLine{ID: oid, From: a, To: b}
}

func (m *Machine) position(oid string, entry Point, stop, target float64) Position {
	side := Long
	if m.tool == ShortTool {
		side = Short
	}
	return Position{ID: oid, Side: side, Time: entry.Time, Entry: entry.Price, Stop: stop, Target: target}
}

// Preview returns the draft object implied by the pending gesture with the
// pointer as the next click. While only the entry of a position is known, the
// pointer is the stop and the target mirrors it at 1:1.
func (m *Machine) Preview(pointer Point) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch st := m.state.(type) {
	case AwaitingPoint2:
		return m.twoPoint("", st.Anchor, pointer), true
	case AwaitingStop:
		target := st.Entry.Price + (st.Entry.Price - pointer.Price)
		return m.position("", st.Entry, pointer.Price, target), true
	case AwaitingTarget:
		return m.position("", st.Entry, st.Stop, pointer.Price), true
	}
	return nil, false
}
