package app

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn once after d. Scheduled work is never cancelled; every
// callback re-validates the game before acting.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler schedules callbacks on runtime timers.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, fn)
}

// ManualScheduler queues callbacks until RunDue is called. It is meant for
// tests that drive a game with an injected clock.
type ManualScheduler struct {
	now   func() time.Time
	mu    sync.Mutex
	seq   int
	tasks []manualTask
}

type manualTask struct {
	at  time.Time
	seq int
	fn  func()
}

func NewManualScheduler(now func() time.Time) *ManualScheduler {
	return &ManualScheduler{now: now}
}

func (s *ManualScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks = append(s.tasks, manualTask{at: s.now().Add(d), seq: s.seq, fn: fn})
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RunDue runs every callback whose time has come, including callbacks that
// become due while running, and returns how many ran.
func (s *ManualScheduler) RunDue() int {
	ran := 0
	for {
		task, ok := s.popDue()
		if !ok {
			return ran
		}
		task.fn()
		ran++
	}
}

func (s *ManualScheduler) popDue() (manualTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.Slice(s.tasks, func(i, j int) bool {
		if !s.tasks[i].at.Equal(s.tasks[j].at) {
			return s.tasks[i].at.Before(s.tasks[j].at)
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
	if len(s.tasks) == 0 || s.tasks[0].at.After(s.now()) {
		return manualTask{}, false
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	return task, true
}
