// Package scheduler owns every timer of a workstation session.
//
// Loops never overlap: a tick or trigger that arrives while the loop's job is
// still running is dropped. Stop cancels everything and waits, so no job
// callback runs after it returns.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/pkg/logger"
)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 12 * time.Second

// Job is one cycle of a loop. The context is cancelled on Stop and after the
// scheduler's timeout.
type Job func(ctx context.Context) error

var ErrStopped = errors.New("scheduler stopped")

// Scheduler runs named loops and debouncers.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	loops     map[string]*loop
	debounced map[string]*Debouncer
	wg        sync.WaitGroup
	stopped   bool
}

type Option func(*Scheduler)

func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = logger.OrNop(l) }
}

func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		timeout:   DefaultTimeout,
		log:       zap.NewNop(),
		loops:     make(map[string]*loop),
		debounced: make(map[string]*Debouncer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoopOption configures a loop registered with Every.
type LoopOption func(*loop)

// Immediately runs the first cycle right away instead of after one interval.
func Immediately() LoopOption {
	return func(l *loop) { l.first = 0 }
}

// WithBackoff retries failed cycles on b's schedule instead of the interval.
func WithBackoff(b *Backoff) LoopOption {
	return func(l *loop) { l.backoff = b }
}

type loop struct {
	name    string
	every   time.Duration
	first   time.Duration
	job     Job
	backoff *Backoff
	trigger chan struct{}
	running atomic.Bool
	runs    atomic.Int64
}

// Every registers and starts a loop. Registering a name twice replaces
// nothing and returns an error.
func (s *Scheduler) Every(name string, every time.Duration, job Job, opts ...LoopOption) error {
	if every <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if _, dup := s.loops[name]; dup {
		return errors.New("scheduler: duplicate loop " + name)
	}

	l := &loop{
		name:    name,
		every:   every,
		first:   every,
		job:     job,
		trigger: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(l)
	}
	s.loops[name] = l

	s.wg.Add(1)
	go s.run(l)
	return nil
}

// Trigger asks a loop to run now. It is a no-op while the loop is running or
// when the name is unknown.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	l, ok := s.loops[name]
	s.mu.Unlock()
	if !ok || l.running.Load() {
		return false
	}
	select {
	case l.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Runs reports how many cycles a loop has completed.
func (s *Scheduler) Runs(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loops[name]; ok {
		return l.runs.Load()
	}
	return 0
}

func (s *Scheduler) run(l *loop) {
	defer s.wg.Done()

	timer := time.NewTimer(l.first)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		case <-l.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		err := s.exec(l)
		next := l.every
		switch {
		case err == nil:
			failures = 0
		case l.backoff != nil:
			next = l.backoff.Delay(failures)
			failures++
		}
		if s.ctx.Err() != nil {
			return
		}
		timer.Reset(next)
	}
}

func (s *Scheduler) exec(l *loop) error {
	l.running.Store(true)
	defer l.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := l.job(ctx)
	l.runs.Add(1)
	if err != nil && s.ctx.Err() == nil {
		s.log.Debug("loop cycle failed", zap.String("loop", l.name), zap.Error(err))
	}
	return err
}

// Debouncer runs its job once, delay after the last Call.
type Debouncer struct {
	s     *Scheduler
	name  string
	delay time.Duration
	job   Job

	mu      sync.Mutex
	timer   *time.Timer
	running atomic.Bool
}

// Debounce registers a debounced job. Calling Debounce again with the same
// name returns the existing debouncer.
func (s *Scheduler) Debounce(name string, delay time.Duration, job Job) *Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.debounced[name]; ok {
		return d
	}
	d := &Debouncer{s: s, name: name, delay: delay, job: job}
	s.debounced[name] = d
	return d
}

// Call (re)arms the debouncer.
func (d *Debouncer) Call() {
	if d.s.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Pending reports whether a run is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	d.mu.Unlock()

	s := d.s
	s.mu.Lock()
	if s.stopped || !d.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer d.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if err := d.job(ctx); err != nil && s.ctx.Err() == nil {
		s.log.Debug("debounced job failed", zap.String("job", d.name), zap.Error(err))
	}
}

func (d *Debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Context is cancelled when the scheduler stops.
func (s *Scheduler) Context() context.Context { return s.ctx }

// Stop tears down every loop and debouncer and waits for running jobs to
// return. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, d := range s.debounced {
		d.stop()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
