package rest

import (
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests jump wall-clock time, simulating process suspension.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestScheduler(onFinish func(int)) (*Scheduler, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	s := NewScheduler(slog.Default(), onFinish)
	s.now = clock.now
	// Keep the real pending timer from racing the test; begin is driven
	// manually.
	s.pendingDelay = time.Hour
	return s, clock
}

// start drives the pending transition to running synchronously, passing
// begin the clamped duration recorded by Start, as the pending timer would.
func start(s *Scheduler, seconds int) {
	s.Start(seconds)
	s.begin(s.startGen, s.requested)
}

// TestCountdownAnchoredToWallClock verifies remaining time is recomputed
// from the end timestamp: 90 seconds requested reads as 90, and a 40-second
// wall-clock jump (suspend/resume) reads as 50, not 90.
func TestCountdownAnchoredToWallClock(t *testing.T) {
	s, clock := newTestScheduler(nil)

	start(s, 90)
	if got := s.Remaining(); got != 90 {
		t.Fatalf("remaining after start = %d, want 90", got)
	}

	clock.advance(40 * time.Second)
	if got := s.Remaining(); got != 50 {
		t.Fatalf("remaining after 40s jump = %d, want 50", got)
	}
}

// TestResyncFinishesElapsedWindow verifies a resume event finishes a window
// whose wall-clock time fully elapsed while suspended.
func TestResyncFinishesElapsedWindow(t *testing.T) {
	done := make(chan int, 1)
	s, clock := newTestScheduler(func(advance int) { done <- advance })

	s.QueueAdvance(2)
	start(s, 30)
	clock.advance(31 * time.Second)

	s.Resync()

	select {
	case advance := <-done:
		if advance != 2 {
			t.Errorf("advance = %d, want 2", advance)
		}
	case <-time.After(time.Second):
		t.Fatal("onFinish not called after resync")
	}
	if got := s.Status().State; got != StateFinished {
		t.Errorf("state = %q, want %q", got, StateFinished)
	}
}

// TestExtendWithTimeLeft verifies extending a running window with 5s left
// yields 20s, computed from the end timestamp.
func TestExtendWithTimeLeft(t *testing.T) {
	s, clock := newTestScheduler(nil)

	start(s, 90)
	clock.advance(85 * time.Second)
	if got := s.Remaining(); got != 5 {
		t.Fatalf("remaining = %d, want 5", got)
	}

	if !s.Extend(15) {
		t.Fatal("Extend returned false for a running window")
	}
	if got := s.Remaining(); got != 20 {
		t.Errorf("remaining after extend = %d, want 20", got)
	}
}

// TestExtendAfterConceptualExpiry verifies the extension base is
// max(now, endTimestamp): extending after the window already elapsed still
// adds the full delta.
func TestExtendAfterConceptualExpiry(t *testing.T) {
	s, clock := newTestScheduler(nil)

	start(s, 30)
	clock.advance(45 * time.Second)

	if !s.Extend(15) {
		t.Fatal("Extend returned false")
	}
	if got := s.Remaining(); got != 15 {
		t.Errorf("remaining after late extend = %d, want 15", got)
	}
}

// TestExtendOnlyWhileRunning verifies extend is rejected when idle, pending,
// or finished.
func TestExtendOnlyWhileRunning(t *testing.T) {
	s, _ := newTestScheduler(nil)
	if s.Extend(15) {
		t.Error("Extend succeeded while idle")
	}
	s.Start(60)
	if s.Extend(15) {
		t.Error("Extend succeeded while pending")
	}
}

// TestSkipFiresFinishImmediately verifies skip cancels the window and runs
// the finish side effect without waiting for expiry.
func TestSkipFiresFinishImmediately(t *testing.T) {
	done := make(chan int, 1)
	s, _ := newTestScheduler(func(advance int) { done <- advance })

	s.QueueAdvance(1)
	start(s, 120)
	s.Skip()

	select {
	case advance := <-done:
		if advance != 1 {
			t.Errorf("advance = %d, want 1", advance)
		}
	case <-time.After(time.Second):
		t.Fatal("onFinish not called after skip")
	}
}

// TestStartIgnoredWhenDisabled verifies the user preference suppresses the
// window entirely.
func TestStartIgnoredWhenDisabled(t *testing.T) {
	s, _ := newTestScheduler(nil)
	s.SetEnabled(false)
	s.Start(90)
	if got := s.Status().State; got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

// TestStartIgnoredForZeroSeconds verifies a zero or negative duration never
// opens a window, while a small positive one clamps up to the minimum.
func TestStartIgnoredForZeroSeconds(t *testing.T) {
	s, _ := newTestScheduler(nil)
	s.Start(0)
	if got := s.Status().State; got != StateIdle {
		t.Fatalf("state after Start(0) = %q, want %q", got, StateIdle)
	}

	start(s, 3)
	if got := s.Remaining(); got != MinSeconds {
		t.Errorf("remaining after Start(3) = %d, want %d", got, MinSeconds)
	}
}

// TestStartClampsToMaximum verifies oversized requests clamp to the cap.
func TestStartClampsToMaximum(t *testing.T) {
	s, _ := newTestScheduler(nil)
	start(s, 3600)
	if got := s.Remaining(); got != MaxSeconds {
		t.Errorf("remaining = %d, want %d", got, MaxSeconds)
	}
}

// TestStaleBeginDoesNotAnchorReplacedWindow verifies a superseded window's
// pending callback cannot win a race with its replacement: a late first
// callback is ignored, and the second window anchors with its own duration.
func TestStaleBeginDoesNotAnchorReplacedWindow(t *testing.T) {
	s, _ := newTestScheduler(nil)

	s.Start(30)
	staleGen := s.startGen
	s.Start(60)

	// The first window's callback fires late, after its Start was replaced.
	s.begin(staleGen, 30)
	if got := s.Status().State; got != StatePending {
		t.Fatalf("state after stale begin = %q, want still %q", got, StatePending)
	}

	s.begin(s.startGen, 60)
	if got := s.Remaining(); got != 60 {
		t.Errorf("remaining = %d, want the replacement's 60", got)
	}
}

// TestRestartReplacesPendingWindow verifies a second start cancels the first
// window's timers rather than stacking a duplicate firing.
func TestRestartReplacesPendingWindow(t *testing.T) {
	var mu sync.Mutex
	fires := 0
	s, clock := newTestScheduler(func(int) {
		mu.Lock()
		fires++
		mu.Unlock()
	})

	start(s, 30)
	start(s, 60)
	clock.advance(61 * time.Second)
	s.Resync()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fires != 1 {
		t.Errorf("finish fired %d times, want 1", fires)
	}
}
