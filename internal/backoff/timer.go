package backoff

import (
	"sync"
	"time"

	"github.com/gaspardpetit/urlpusher/internal/loop"
)

// DefaultReconnectDelay is the fixed pause between a disconnect and the next
// dial attempt.
const DefaultReconnectDelay = 3 * time.Second

// Stopper is the handle returned by Clock.AfterFunc.
type Stopper interface {
	Stop() bool
}

// Clock abstracts time so timer behavior can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Timer holds at most one pending callback. Arm cancels whatever was pending
// before scheduling the new one, so a burst of Arm calls leaves exactly one
// callback armed. The callback is delivered through the Poster, which keeps it
// on the owner's event loop.
type Timer struct {
	mu      sync.Mutex
	clock   Clock
	post    loop.Poster
	pending Stopper
	gen     uint64
}

// NewTimer returns an idle timer. A nil clock selects RealClock.
func NewTimer(clock Clock, post loop.Poster) *Timer {
	if clock == nil {
		clock = RealClock
	}
	return &Timer{clock: clock, post: post}
}

// Arm cancels any pending callback and schedules fn after d.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() {
		t.post.Post(func() { t.fire(gen, fn) })
	})
}

// Cancel drops the pending callback, if any. A callback whose underlying
// timer already fired but has not yet run on the loop is suppressed too.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
}

// Pending reports whether a callback is armed.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Timer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) fire(gen uint64, fn func()) {
	t.mu.Lock()
	if gen != t.gen || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()
	fn()
}
