package chart

import (
	"context"
	"sync/atomic"
	"time"
)

// Redrawer coalesces redraw requests into at most one draw per frame.
type Redrawer struct {
	draw    func()
	pending atomic.Bool
	frames  atomic.Int64
}

func NewRedrawer(draw func()) *Redrawer {
	return &Redrawer{draw: draw}
}

// Request marks the chart dirty. Any number of requests before the next
// frame produce a single draw.
func (r *Redrawer) Request() {
	r.pending.Store(true)
}

func (r *Redrawer) Pending() bool { return r.pending.Load() }

// Frame draws if a request is pending and reports whether it did.
func (r *Redrawer) Frame() bool {
	if !r.pending.CompareAndSwap(true, false) {
		return false
	}
	r.draw()
	r.frames.Add(1)
	return true
}

// Frames counts completed draws.
func (r *Redrawer) Frames() int64 { return r.frames.Load() }

// Run calls Frame at fps until ctx is done.
func (r *Redrawer) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Frame()
		}
	}
}
