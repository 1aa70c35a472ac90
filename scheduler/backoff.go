package scheduler

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes capped exponential delays with random jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// DefaultBackoff starts at 500ms and never waits longer than 30s.
func DefaultBackoff() *Backoff {
	return &Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second}
}

// Ceiling returns the un-jittered delay for the given attempt (0-based).
func (b *Backoff) Ceiling(attempt int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	return d
}

// Delay returns the delay before retry number attempt: half the ceiling
// plus a random share of the other half.
func (b *Backoff) Delay(attempt int) time.Duration {
	ceil := b.Ceiling(attempt)
	half := ceil / 2
	if half <= 0 {
		return ceil
	}

	b.mu.Lock()
	if b.rnd == nil {
		b.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	j := time.Duration(b.rnd.Int63n(int64(half) + 1))
	b.mu.Unlock()

	return half + j
}
