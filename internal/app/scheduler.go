package app

import (
	"context"
	"sync"
	"time"
)

// CancelFunc cancels one scheduled task. It is safe to call more than once.
type CancelFunc func()

// Scheduler owns every timer of a room so they can be canceled as a unit.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[uint64]*time.Timer
	next    uint64
	stopped bool
}

// NewScheduler returns a scheduler whose task contexts derive from parent.
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel, timers: make(map[uint64]*time.Timer)}
}

// After runs fn in its own goroutine once d has elapsed, unless canceled or stopped first.
// The context passed to fn is canceled when the scheduler stops.
func (s *Scheduler) After(d time.Duration, fn func(ctx context.Context)) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}
	s.next++
	id := s.next
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if _, ok := s.timers[id]; !ok || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		ctx := s.ctx
		s.mu.Unlock()
		fn(ctx)
	})
	return func() { s.cancelTask(id) }
}

func (s *Scheduler) cancelTask(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of tasks that have not fired or been canceled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending task and the context of any task already running.
// Later calls to After are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.cancel()
}
