package drawing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("d%d", n)
	}
}

func pt(minutes int, price float64) Point {
	return Point{Time: t0.Add(time.Duration(minutes) * time.Minute), Price: price}
}

func TestToolArity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool Tool
		kind Kind
	}{
		{HLineTool, KindHLine},
		{VLineTool, KindVLine},
		{TrendTool, KindTrend},
		{RangeTool, KindRange},
		{RayTool, KindRay},
		{DPRangeTool, KindDPRange},
		{LongTool, KindPosition},
		{ShortTool, KindPosition},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.tool.String(), func(t *testing.T) {
			t.Parallel()

			m := NewMachine(WithIDs(seqIDs()))
			m.SetTool(tt.tool)

			for i := 1; i < tt.tool.Clicks(); i++ {
				_, done := m.Click(pt(i, 100+float64(i)))
				require.False(t, done, "click %d must not finalize", i)
				assert.NotEqual(t, Idle{}, m.State())
			}
			obj, done := m.Click(pt(10, 110))
			require.True(t, done)
			assert.Equal(t, tt.kind, obj.Kind())
			assert.Equal(t, Idle{}, m.State())
			assert.Equal(t, 1, m.Objects().Len())
			assert.Equal(t, tt.tool, m.Tool(), "tool stays selected")
		})
	}
}

func TestRangeRequiresTwoClicks(t *testing.T) {
	t.Parallel()

	m := NewMachine(WithIDs(seqIDs()))
	m.SetTool(RangeTool)

	_, done := m.Click(pt(0, 100))
	assert.False(t, done)
	assert.Equal(t, AwaitingPoint2{Anchor: pt(0, 100)}, m.State())

	obj, done := m.Click(pt(30, 110))
	require.True(t, done)
	assert.Equal(t, RangeMeasure{ID: "d1", From: pt(0, 100), To: pt(30, 110)}, obj)
	assert.Equal(t, Idle{}, m.State())
	assert.Len(t, m.Objects().Ranges, 1)
}

func TestLongRequiresThreeClicks(t *testing.T) {
	t.Parallel()

	m := NewMachine(WithIDs(seqIDs()))
	m.SetTool(LongTool)

	_, done := m.Click(pt(0, 100))
	assert.False(t, done)
	assert.Equal(t, AwaitingStop{Entry: pt(0, 100)}, m.State())

	_, done = m.Click(pt(5, 95))
	assert.False(t, done)
	assert.Equal(t, AwaitingTarget{Entry: pt(0, 100), Stop: 95}, m.State())

	obj, done := m.Click(pt(9, 115))
	require.True(t, done)
	p := obj.(Position)
	assert.Equal(t, Position{ID: "d1", Side: Long, Time: t0, Entry: 100, Stop: 95, Target: 115}, p)
	assert.InDelta(t, 3.0, p.RewardRisk(), 1e-12)
	assert.Equal(t, Idle{}, m.State())
}

func TestSwitchToolDiscardsPending(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	m.SetTool(TrendTool)
	m.Click(pt(0, 1))
	m.SetTool(HLineTool)
	assert.Equal(t, Idle{}, m.State())
	assert.Equal(t, 0, m.Objects().Len())

	m.SetTool(ShortTool)
	m.Click(pt(0, 1))
	m.Cancel()
	assert.Equal(t, Idle{}, m.State())
	assert.Equal(t, ShortTool, m.Tool())
}

func TestNoToolIgnoresClicks(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	_, done := m.Click(pt(0, 1))
	assert.False(t, done)
	assert.Equal(t, 0, m.Objects().Len())
}

func TestClear(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	m.SetTool(HLineTool)
	m.Click(pt(0, 1))
	m.Click(pt(0, 2))
	m.SetTool(TrendTool)
	m.Click(pt(0, 1))
	assert.Equal(t, 2, m.Objects().Len())

	m.Clear()
	assert.Equal(t, 0, m.Objects().Len())
	assert.Equal(t, Idle{}, m.State())
}

func TestObjectsIsACopy(t *testing.T) {
	t.Parallel()

	m := NewMachine(WithIDs(seqIDs()))
	m.SetTool(HLineTool)
	m.Click(pt(0, 1))
	objs := m.Objects()
	objs.HLines[0].Price = 99
	assert.Equal(t, 1.0, m.Objects().HLines[0].Price)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	_, ok := m.Preview(pt(1, 1))
	assert.False(t, ok)

	m.SetTool(RayTool)
	m.Click(pt(0, 10))
	obj, ok := m.Preview(pt(3, 12))
	require.True(t, ok)
	assert.Equal(t, Ray{From: pt(0, 10), To: pt(3, 12)}, obj)

	m.SetTool(ShortTool)
	m.Click(pt(0, 100))
	obj, ok = m.Preview(pt(1, 104))
	require.True(t, ok)
	assert.Equal(t, Position{Side: Short, Time: t0, Entry: 100, Stop: 104, Target: 96}, obj)

	m.Click(pt(1, 104))
	obj, _ = m.Preview(pt(2, 90))
	assert.Equal(t, Position{Side: Short, Time: t0, Entry: 100, Stop: 104, Target: 90}, obj)
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	r := RangeMeasure{From: pt(0, 100), To: pt(25, 95)}
	m := r.Measure(5 * time.Minute)
	assert.InDelta(t, -5.0, m.Delta, 1e-12)
	assert.InDelta(t, -5.0, m.Percent, 1e-12)
	assert.Equal(t, 5, m.Bars)

	back := RangeMeasure{From: pt(25, 95), To: pt(0, 100)}
	assert.Equal(t, 5, back.Measure(5*time.Minute).Bars)
}

func TestParseTool(t *testing.T) {
	t.Parallel()

	for tool := range toolNames {
		got, err := ParseTool(tool.String())
		require.NoError(t, err)
		assert.Equal(t, tool, got)
	}
	_, err := ParseTool("lasso")
	assert.Error(t, err)
}
