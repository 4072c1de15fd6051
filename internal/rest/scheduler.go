// Package rest implements the rest-window countdown between sets and
// exercises. The countdown is anchored to wall-clock time: remaining time is
// always recomputed from an end timestamp, never decremented per tick, so it
// stays exact across host-process suspension. Callers resynchronize on
// resume/visibility events via Resync.
package rest

import (
	"log/slog"
	"sync"
	"time"
)

// State of the rest window.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Clamp bounds for a requested rest duration, in seconds.
const (
	MinSeconds = 10
	MaxSeconds = 600
)

// defaultPendingDelay is the short UI-transition delay between a start
// request and the countdown anchoring its end timestamp.
const defaultPendingDelay = 300 * time.Millisecond

// Status is a point-in-time view of the scheduler.
type Status struct {
	State            State `json:"state"`
	RemainingSeconds int   `json:"remaining_seconds"`
	AdvanceTo        int   `json:"advance_to"`
}

// Scheduler runs at most one rest window at a time. Every scheduling path
// cancels any prior pending timer of the same kind before starting a new
// one, so a window can never fire twice.
type Scheduler struct {
	mu           sync.Mutex
	state        State
	end          time.Time
	requested    int // seconds, valid while pending
	startGen     int // bumped per Start; stale pending callbacks check it
	advanceTo    int // exercise index queued for post-rest advance; -1 none
	enabled      bool
	now          func() time.Time
	pendingDelay time.Duration
	pendingTimer *time.Timer
	expireTimer  *time.Timer
	onFinish     func(advanceTo int)
	log          *slog.Logger
}

// NewScheduler creates an idle scheduler. onFinish runs (outside the
// scheduler lock) when a window completes or is skipped; advanceTo is the
// queued exercise index, or -1.
func NewScheduler(log *slog.Logger, onFinish func(advanceTo int)) *Scheduler {
	return &Scheduler{
		state:        StateIdle,
		advanceTo:    -1,
		enabled:      true,
		now:          time.Now,
		pendingDelay: defaultPendingDelay,
		onFinish:     onFinish,
		log:          log,
	}
}

// SetEnabled applies the user's rest preference. Disabling does not cancel a
// window already in flight.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether rest windows are currently allowed.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// QueueAdvance records the exercise index to move to when the current or
// next window finishes.
func (s *Scheduler) QueueAdvance(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceTo = index
}

// Start requests a rest window. Ignored when resting is disabled or the
// requested duration resolves to zero; otherwise the duration is clamped to
// [MinSeconds, MaxSeconds], the scheduler enters pending, and after a short
// UI-transition delay anchors the end timestamp and begins running.
func (s *Scheduler) Start(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || seconds <= 0 {
		return
	}
	if seconds < MinSeconds {
		seconds = MinSeconds
	}
	if seconds > MaxSeconds {
		seconds = MaxSeconds
	}

	s.cancelTimersLocked()
	s.state = StatePending
	s.requested = seconds
	s.startGen++
	gen := s.startGen
	s.pendingTimer = time.AfterFunc(s.pendingDelay, func() { s.begin(gen, seconds) })
}

// begin anchors the countdown for the pending window of generation gen. A
// stale callback (its Start was superseded while the timer was already
// firing, so Stop could not cancel it) fails the generation check.
func (s *Scheduler) begin(gen, seconds int) {
	s.mu.Lock()
	if s.state != StatePending || gen != s.startGen {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.end = s.now().Add(time.Duration(seconds) * time.Second)
	s.armExpireLocked()
	s.mu.Unlock()
}

// armExpireLocked (re)schedules the expiry callback for the current end
// timestamp. The callback re-checks remaining time, so firing late after a
// suspend is harmless.
func (s *Scheduler) armExpireLocked() {
	if s.expireTimer != nil {
		s.expireTimer.Stop()
	}
	d := s.end.Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.expireTimer = time.AfterFunc(d, s.expire)
}

func (s *Scheduler) expire() {
	s.mu.Lock()
	if s.state != StateRunning || s.remainingLocked() > 0 {
		s.mu.Unlock()
		return
	}
	s.finishLocked("expired")
}

// finishLocked transitions to finished and fires the completion effect.
// Releases the lock before invoking onFinish.
func (s *Scheduler) finishLocked(cause string) {
	s.state = StateFinished
	advance := s.advanceTo
	s.advanceTo = -1
	s.cancelTimersLocked()
	s.log.Info("rest window finished", "cause", cause, "advance_to", advance)
	cb := s.onFinish
	s.mu.Unlock()
	if cb != nil {
		cb(advance)
	}
}

// Remaining reports the whole seconds left, recomputed from the end
// timestamp. Zero when idle or finished; the requested duration while the
// pending delay elapses.
func (s *Scheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Scheduler) remainingLocked() int {
	switch s.state {
	case StatePending:
		return s.requested
	case StateRunning:
		ms := s.end.Sub(s.now()).Milliseconds()
		if ms <= 0 {
			return 0
		}
		return int((ms + 999) / 1000)
	default:
		return 0
	}
}

// Resync recomputes remaining time against the wall clock. Called on
// resume/visibility-restore events and periodic ticks: after a suspend the
// expiry timer may be arbitrarily late, so the window is finished here as
// soon as the wall clock says it elapsed.
func (s *Scheduler) Resync() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if s.remainingLocked() == 0 {
		s.finishLocked("resync")
		return
	}
	s.armExpireLocked()
	s.mu.Unlock()
}

// Extend pushes the end timestamp forward by deltaSeconds. Only valid while
// running. The base is max(now, end), so extending a window that already
// conceptually elapsed still adds the full delta.
func (s *Scheduler) Extend(deltaSeconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || deltaSeconds <= 0 {
		return false
	}
	base := s.end
	if n := s.now(); n.After(base) {
		base = n
	}
	s.end = base.Add(time.Duration(deltaSeconds) * time.Second)
	s.armExpireLocked()
	return true
}

// Skip cancels any pending start and performs the finish side effect
// immediately, without waiting for expiry.
func (s *Scheduler) Skip() {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	s.finishLocked("skipped")
}

// Reset returns the scheduler to idle, dropping any queued advance. Used
// when a session ends.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	s.state = StateIdle
	s.advanceTo = -1
	s.requested = 0
	s.end = time.Time{}
}

// Status returns a snapshot for the UI.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:            s.state,
		RemainingSeconds: s.remainingLocked(),
		AdvanceTo:        s.advanceTo,
	}
}

func (s *Scheduler) cancelTimersLocked() {
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
	if s.expireTimer != nil {
		s.expireTimer.Stop()
		s.expireTimer = nil
	}
}
