package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRunsAndStops(t *testing.T) {
	t.Parallel()

	s := New()
	var n atomic.Int32
	require.NoError(t, s.Every("tick", 5*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	}, Immediately()))

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load(), "no cycle may run after Stop")
}

func TestLoopNeverOverlaps(t *testing.T) {
	t.Parallel()

	s := New()
	defer s.Stop()

	var active, maxActive atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Every("slow", time.Millisecond, func(ctx context.Context) error {
		cur := active.Add(1)
		if cur > maxActive.Load() {
			maxActive.Store(cur)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		active.Add(-1)
		return nil
	}, Immediately()))

	require.Eventually(t, func() bool { return active.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, s.Trigger("slow"), "trigger while in flight is skipped")
	time.Sleep(10 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return s.Runs("slow") >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestTriggerRunsEarly(t *testing.T) {
	t.Parallel()

	s := New()
	defer s.Stop()

	ran := make(chan struct{}, 4)
	require.NoError(t, s.Every("slowtick", time.Hour, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}))

	assert.True(t, s.Trigger("slowtick"))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("trigger did not run the loop")
	}
	assert.False(t, s.Trigger("missing"))
}

func TestDuplicateLoop(t *testing.T) {
	t.Parallel()

	s := New()
	defer s.Stop()
	job := func(context.Context) error { return nil }
	require.NoError(t, s.Every("a", time.Hour, job))
	assert.Error(t, s.Every("a", time.Hour, job))
	assert.Error(t, s.Every("b", 0, job))
}

func TestEveryAfterStop(t *testing.T) {
	t.Parallel()

	s := New()
	s.Stop()
	s.Stop()
	err := s.Every("late", time.Second, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestBackoffOnFailure(t *testing.T) {
	t.Parallel()

	s := New()
	defer s.Stop()

	var calls atomic.Int32
	b := &Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond}
	require.NoError(t, s.Every("flaky", time.Hour, func(ctx context.Context) error {
		if calls.Add(1) < 4 {
			return errors.New("boom")
		}
		return nil
	}, Immediately(), WithBackoff(b)))

	// with a one hour interval only the backoff schedule can produce retries
	require.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
}

func TestJobTimeout(t *testing.T) {
	t.Parallel()

	s := New(WithTimeout(5 * time.Millisecond))
	defer s.Stop()

	done := make(chan error, 1)
	require.NoError(t, s.Every("hang", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, Immediately()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout not applied")
	}
}

func TestDebounceCoalesces(t *testing.T) {
	t.Parallel()

	s := New()
	defer s.Stop()

	var n atomic.Int32
	d := s.Debounce("resync", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	})
	assert.Same(t, d, s.Debounce("resync", time.Hour, nil))

	for i := 0; i < 5; i++ {
		d.Call()
	}
	assert.True(t, d.Pending())
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
	assert.False(t, d.Pending())
}

func TestDebounceCancelledByStop(t *testing.T) {
	t.Parallel()

	s := New()
	var n atomic.Int32
	d := s.Debounce("resync", 5*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		return nil
	})
	d.Call()
	s.Stop()
	d.Call()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	assert.Equal(t, 500*time.Millisecond, b.Ceiling(0))
	assert.Equal(t, time.Second, b.Ceiling(1))
	assert.Equal(t, 30*time.Second, b.Ceiling(10))
	assert.Equal(t, 30*time.Second, b.Ceiling(1000))

	for attempt := 0; attempt < 12; attempt++ {
		d := b.Delay(attempt)
		ceil := b.Ceiling(attempt)
		assert.GreaterOrEqual(t, d, ceil/2)
		assert.LessOrEqual(t, d, ceil)
	}
}
