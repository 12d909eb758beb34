// Package pomodoro implements a work/break interval timer. The timer
// never counts ticks: it records the absolute end time of the current
// phase and recomputes the remainder from the wall clock, so a slow
// UI loop or a process restart cannot make it drift.
package pomodoro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Phase is what the timer is currently counting down.
type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// Default interval lengths.
const (
	DefaultWork  = 25 * time.Minute
	DefaultBreak = 5 * time.Minute
)

// Config sets the interval lengths and whether finished phases roll
// into the next one automatically.
type Config struct {
	Work        time.Duration `json:"work"`
	Break       time.Duration `json:"break"`
	AutoAdvance bool          `json:"autoAdvance"`
}

func (c *Config) setDefaults() {
	if c.Work <= 0 {
		c.Work = DefaultWork
	}
	if c.Break <= 0 {
		c.Break = DefaultBreak
	}
}

// Timer is a pausable work/break countdown. All methods are safe for
// concurrent use.
type Timer struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	phase     Phase
	running   bool
	endAt     time.Time
	remaining time.Duration
	completed int
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// New creates a stopped timer positioned at the start of a work
// phase.
func New(cfg Config, opts ...Option) *Timer {
	cfg.setDefaults()
	t := &Timer{
		cfg:       cfg,
		now:       time.Now,
		phase:     PhaseWork,
		remaining: cfg.Work,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins counting the current phase down. Starting a running
// timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.endAt = t.now().Add(t.remaining)
}

// Pause freezes the countdown, keeping the remainder.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.advanceLocked()
	if t.running {
		t.remaining = t.endAt.Sub(t.now())
		t.running = false
	}
}

// Skip abandons the current phase and moves to the next one, stopped.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	t.rollLocked()
	t.running = false
}

// Reset stops the timer and rewinds it to a full work phase.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseWork
	t.running = false
	t.remaining = t.cfg.Work
	t.completed = 0
}

// Remaining returns how much of the current phase is left. A running
// phase that has elapsed advances the timer first.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	if !t.running {
		return t.remaining
	}
	return t.endAt.Sub(t.now())
}

// Phase returns the current phase, advancing first if the running
// phase has elapsed.
func (t *Timer) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	return t.phase
}

// Running reports whether the countdown is live.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	return t.running
}

// Completed returns how many work phases have finished.
func (t *Timer) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	return t.completed
}

// advanceLocked rolls the timer forward over every phase boundary the
// clock has passed. With auto-advance off the timer stops at the
// start of the next phase.
func (t *Timer) advanceLocked() {
	for t.running {
		left := t.endAt.Sub(t.now())
		if left > 0 {
			return
		}
		overshoot := -left
		t.rollLocked()
		if !t.cfg.AutoAdvance {
			t.running = false
			return
		}
		t.endAt = t.now().Add(t.remaining - overshoot)
	}
}

// rollLocked moves to the next phase with a full remainder.
func (t *Timer) rollLocked() {
	if t.phase == PhaseWork {
		t.completed++
		t.phase = PhaseBreak
		t.remaining = t.cfg.Break
	} else {
		t.phase = PhaseWork
		t.remaining = t.cfg.Work
	}
}

// savedState is the on-disk snapshot. The absolute end time survives
// restarts, so a running phase resumes with the correct remainder.
type savedState struct {
	Config    Config        `json:"config"`
	Phase     Phase         `json:"phase"`
	Running   bool          `json:"running"`
	EndAt     time.Time     `json:"endAt,omitempty"`
	Remaining time.Duration `json:"remaining"`
	Completed int           `json:"completed"`
}

// Save writes the timer state to path.
func (t *Timer) Save(path string) error {
	t.mu.Lock()
	t.advanceLocked()
	st := savedState{
		Config:    t.cfg,
		Phase:     t.phase,
		Running:   t.running,
		EndAt:     t.endAt,
		Remaining: t.remaining,
		Completed: t.completed,
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding timer state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving timer state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("saving timer state: %w", err)
	}
	return nil
}

// Load restores a timer from path. A missing file yields a fresh
// timer with the given config.
func Load(path string, cfg Config, opts ...Option) (*Timer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(cfg, opts...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading timer state: %w", err)
	}
	var st savedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding timer state: %w", err)
	}
	st.Config.setDefaults()

	t := New(st.Config, opts...)
	t.mu.Lock()
	t.phase = st.Phase
	t.running = st.Running
	t.endAt = st.EndAt
	t.remaining = st.Remaining
	t.completed = st.Completed
	t.mu.Unlock()
	return t, nil
}
