package event

import (
	"sort"
	"sync"
	"time"
)

// Scheduler abstracts deferred callbacks so the scroll debounce can run on
// virtual time in tests instead of real delays.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// RealScheduler defers through the runtime timer.
type RealScheduler struct{}

func (RealScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ManualScheduler queues callbacks and releases them only when the test
// advances its clock.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	pending []manualTimer
}

type manualTimer struct {
	at time.Duration
	fn func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, manualTimer{at: m.now + d, fn: fn})
}

// Advance moves the virtual clock forward and fires every callback that has
// come due, in scheduled order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due, rest []manualTimer
	for _, timer := range m.pending {
		if timer.at <= m.now {
			due = append(due, timer)
		} else {
			rest = append(rest, timer)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	m.pending = rest
	m.mu.Unlock()

	for _, timer := range due {
		timer.fn()
	}
}

// Pending reports how many callbacks are still queued.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
