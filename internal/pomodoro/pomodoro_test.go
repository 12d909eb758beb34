package pomodoro

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeClock is an adjustable clock for driving the timer by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCountdownIsDriftFree(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute}, WithClock(clock.Now))

	timer.Start()
	// However rarely the caller polls, the remainder tracks the wall
	// clock, not the number of polls.
	clock.Advance(10 * time.Minute)
	if got := timer.Remaining(); got != 15*time.Minute {
		t.Errorf("Remaining() = %v, want 15m", got)
	}
	clock.Advance(14 * time.Minute)
	if got := timer.Remaining(); got != time.Minute {
		t.Errorf("Remaining() = %v, want 1m", got)
	}
}

func TestPauseKeepsRemainder(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute}, WithClock(clock.Now))

	timer.Start()
	clock.Advance(5 * time.Minute)
	timer.Pause()

	clock.Advance(time.Hour)
	if got := timer.Remaining(); got != 20*time.Minute {
		t.Errorf("paused Remaining() = %v, want 20m", got)
	}

	timer.Start()
	clock.Advance(20 * time.Minute)
	if got := timer.Phase(); got != PhaseBreak {
		t.Errorf("Phase() = %v, want break after work elapses", got)
	}
}

func TestPhaseAdvancesWithoutAuto(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute, Break: 5 * time.Minute}, WithClock(clock.Now))

	timer.Start()
	clock.Advance(30 * time.Minute)

	if got := timer.Phase(); got != PhaseBreak {
		t.Errorf("Phase() = %v, want break", got)
	}
	if timer.Running() {
		t.Error("timer should stop at the phase boundary without auto-advance")
	}
	if got := timer.Remaining(); got != 5*time.Minute {
		t.Errorf("Remaining() = %v, want a full break", got)
	}
	if got := timer.Completed(); got != 1 {
		t.Errorf("Completed() = %d, want 1", got)
	}
}

func TestAutoAdvanceRollsThroughPhases(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute, Break: 5 * time.Minute, AutoAdvance: true}, WithClock(clock.Now))

	timer.Start()
	// 25m work + 5m break + 10m into the second work phase.
	clock.Advance(40 * time.Minute)

	if got := timer.Phase(); got != PhaseWork {
		t.Errorf("Phase() = %v, want work", got)
	}
	if !timer.Running() {
		t.Error("auto-advance should keep the timer running")
	}
	if got := timer.Remaining(); got != 15*time.Minute {
		t.Errorf("Remaining() = %v, want 15m into second work phase", got)
	}
	if got := timer.Completed(); got != 1 {
		t.Errorf("Completed() = %d, want 1", got)
	}
}

func TestSkip(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute, Break: 5 * time.Minute}, WithClock(clock.Now))

	timer.Start()
	clock.Advance(time.Minute)
	timer.Skip()

	if got := timer.Phase(); got != PhaseBreak {
		t.Errorf("Phase() = %v, want break", got)
	}
	if timer.Running() {
		t.Error("skip should leave the timer stopped")
	}
	if got := timer.Completed(); got != 1 {
		t.Errorf("skipping a work phase still completes it, got %d", got)
	}
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	timer := New(Config{Work: 25 * time.Minute}, WithClock(clock.Now))

	timer.Start()
	clock.Advance(10 * time.Minute)
	timer.Reset()

	if got := timer.Remaining(); got != 25*time.Minute {
		t.Errorf("Remaining() after reset = %v, want 25m", got)
	}
	if timer.Running() {
		t.Error("reset should stop the timer")
	}
}

func TestSaveLoadResumesRunningPhase(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "pomodoro.json")

	timer := New(Config{Work: 25 * time.Minute}, WithClock(clock.Now))
	timer.Start()
	clock.Advance(5 * time.Minute)
	if err := timer.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Ten minutes pass while the process is down.
	clock.Advance(10 * time.Minute)

	loaded, err := Load(path, Config{}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.Remaining(); got != 10*time.Minute {
		t.Errorf("Remaining() after restart = %v, want 10m", got)
	}
	if !loaded.Running() {
		t.Error("running timer should resume running")
	}
}

func TestLoadMissingFileGivesFreshTimer(t *testing.T) {
	timer, err := Load(filepath.Join(t.TempDir(), "absent.json"), Config{Work: 10 * time.Minute})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := timer.Remaining(); got != 10*time.Minute {
		t.Errorf("Remaining() = %v, want 10m", got)
	}
}
