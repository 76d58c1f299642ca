// Package sched runs one-shot deferred jobs in-process. Jobs do not survive a
// restart; everything scheduled here is best-effort (review prompts, deferred
// status processing).
package sched

import (
	"log"
	"sync"
	"time"
)

type Scheduler struct {
	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func New() *Scheduler {
	return &Scheduler{timers: map[*time.Timer]struct{}{}}
}

// After runs fn once after delay. Panics in fn are recovered and logged so a
// bad job cannot take the process down.
func (s *Scheduler) After(delay time.Duration, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("scheduled job panic: %v", r)
			}
		}()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		fn()
	})
	s.timers[t] = struct{}{}
	s.mu.Unlock()
}

// Stop cancels all pending jobs; used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = map[*time.Timer]struct{}{}
}
