// Package tick provides the single logical tick thread that owns all actor
// and selection mutations.
package tick

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PerSecond is the nominal tick rate.
const PerSecond = 20

// ErrStopped is returned by Do when the loop stops before running the closure.
var ErrStopped = errors.New("tick loop stopped")

// Scheduler is the scheduling surface consumed by the power components.
type Scheduler interface {
	// After runs fn once, delay ticks from now. A delay below 1 means the next tick.
	After(delay int, fn func())
	// Every runs fn every period ticks, first after delay ticks.
	Every(delay, period int, fn func())
}

type task struct {
	due    int64
	seq    int64
	period int
	fn     func()
}

// Loop is a cooperative tick scheduler. Scheduled tasks and closures passed
// to Do all run on one goroutine, never concurrently with each other.
//
// Invariant: within one tick, tasks run in due order, then in scheduling order.
type Loop struct {
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	now     int64
	seq     int64
	tasks   []*task
	running bool
	started bool

	submit chan func()
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewLoop returns a stopped Loop that ticks every interval once started.
//
// Precondition: interval must be > 0; logger must not be nil.
func NewLoop(interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		panic("tick.NewLoop: interval must be > 0")
	}
	return &Loop{
		interval: interval,
		logger:   logger,
		submit:   make(chan func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Now returns the number of ticks processed so far.
func (l *Loop) Now() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Running reports whether Start is executing.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Pending returns the number of scheduled tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// After implements Scheduler.
func (l *Loop) After(delay int, fn func()) {
	l.schedule(delay, 0, fn)
}

// Every implements Scheduler.
//
// Precondition: period must be >= 1.
func (l *Loop) Every(delay, period int, fn func()) {
	if period < 1 {
		panic("tick.Every: period must be >= 1")
	}
	l.schedule(delay, period, fn)
}

func (l *Loop) schedule(delay, period int, fn func()) {
	if delay < 1 {
		delay = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.tasks = append(l.tasks, &task{due: l.now + int64(delay), seq: l.seq, period: period, fn: fn})
}

// Do runs fn on the tick thread and waits for it. When the loop is not
// running, fn runs on the caller's goroutine.
//
// Postcondition: Returns nil after fn ran, or ctx.Err() / ErrStopped if it did not.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if !running {
		l.run(fn)
		return nil
	}

	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		l.run(fn)
	}
	select {
	case l.submit <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
	<-ran
	return nil
}

// Advance processes n ticks synchronously on the caller's goroutine.
// It is meant for hosts that drive ticks themselves and for tests.
//
// Precondition: the loop must not be started.
func (l *Loop) Advance(n int) {
	for i := 0; i < n; i++ {
		l.step()
	}
}

func (l *Loop) step() {
	l.mu.Lock()
	l.now++
	now := l.now
	var due []*task
	keep := l.tasks[:0]
	for _, t := range l.tasks {
		if t.due <= now {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	for i := len(keep); i < len(l.tasks); i++ {
		l.tasks[i] = nil
	}
	l.tasks = keep
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		l.run(t.fn)
		if t.period > 0 {
			l.mu.Lock()
			t.due = now + int64(t.period)
			l.tasks = append(l.tasks, t)
			l.mu.Unlock()
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick task panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Start runs the loop until Stop is called. It blocks, matching server.Service.
//
// Postcondition: every scheduled task runs on the loop goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("tick loop already started")
	}
	l.started = true
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return nil
		case fn := <-l.submit:
			fn()
		case <-ticker.C:
			l.step()
		}
	}
}

// Stop ends a running loop and waits for it to exit. Stop is idempotent and
// safe to call on a loop that never started.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stop) })
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if running {
		<-l.done
	}
}
