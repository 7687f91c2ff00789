package inactivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Phase is the state of the inactivity guard.
type Phase string

const (
	Active  Phase = "active"
	Warning Phase = "warning"
	Expired Phase = "expired"
)

// Reasons reported with a transition.
const (
	ReasonTimeout   = "timeout"
	ReasonCountdown = "countdown_elapsed"
	ReasonCancelled = "cancelled"
)

// ErrExpired is returned by interactions attempted after expiry.
var ErrExpired = errors.New("inactivity: session expired")

// Config holds the monitor timings.
type Config struct {
	WarnAfter  time.Duration
	Countdown  time.Duration
	CheckEvery time.Duration
}

// DefaultConfig warns after 30s idle, expires 30s later and checks every second.
func DefaultConfig() Config {
	return Config{
		WarnAfter:  30 * time.Second,
		Countdown:  30 * time.Second,
		CheckEvery: time.Second,
	}
}

// Transition describes a phase change.
type Transition struct {
	From   Phase
	To     Phase
	Reason string
	At     time.Time
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Phase     Phase         `json:"phase"`
	IdleFor   time.Duration `json:"idle_for"`
	Remaining time.Duration `json:"remaining"`
}

// Monitor tracks the last interaction and drives Active -> Warning -> Expired.
type Monitor struct {
	clock        clockwork.Clock
	config       Config
	onTransition func(Transition)

	mu               sync.Mutex
	phase            Phase
	lastInteraction  time.Time
	warningStartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor in the Active phase. onTransition may be nil; it is
// called without the monitor lock held.
func New(clock clockwork.Clock, config Config, onTransition func(Transition)) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	defaults := DefaultConfig()
	if config.WarnAfter <= 0 {
		config.WarnAfter = defaults.WarnAfter
	}
	if config.Countdown <= 0 {
		config.Countdown = defaults.Countdown
	}
	if config.CheckEvery <= 0 {
		config.CheckEvery = defaults.CheckEvery
	}

	return &Monitor{
		clock:           clock,
		config:          config,
		onTransition:    onTransition,
		phase:           Active,
		lastInteraction: clock.Now(),
	}
}

// Config returns the timings in use.
func (m *Monitor) Config() Config {
	return m.config
}

// Phase returns the current phase.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Status returns the phase, idle time and the remaining warning countdown.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	st := Status{Phase: m.phase}
	if m.phase != Expired {
		st.IdleFor = now.Sub(m.lastInteraction)
	}
	if m.phase == Warning {
		st.Remaining = m.config.Countdown - now.Sub(m.warningStartedAt)
		if st.Remaining < 0 {
			st.Remaining = 0
		}
	}
	return st
}

// Touch records an interaction and returns to Active, cancelling a pending
// warning.
func (m *Monitor) Touch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactLocked()
}

// Confirm is the explicit "continue" answer to a warning. It behaves like
// Touch.
func (m *Monitor) Confirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactLocked()
}

func (m *Monitor) interactLocked() error {
	if m.phase == Expired {
		return ErrExpired
	}
	m.phase = Active
	m.lastInteraction = m.clock.Now()
	m.warningStartedAt = time.Time{}
	return nil
}

// Cancel expires the session immediately. It reports false when the monitor
// was already expired.
func (m *Monitor) Cancel() bool {
	tr := m.Expire(ReasonCancelled)
	if tr == nil {
		return false
	}
	m.notify(*tr)
	return true
}

// Expire moves the monitor to Expired without calling onTransition. It
// returns nil when the monitor was already expired.
func (m *Monitor) Expire(reason string) *Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Expired {
		return nil
	}
	tr := &Transition{From: m.phase, To: Expired, Reason: reason, At: m.clock.Now()}
	m.phase = Expired
	return tr
}

// Check compares the idle time against the thresholds and advances the phase
// at most one step. It returns the phase after the check.
func (m *Monitor) Check() Phase {
	phase, tr := m.Step()
	if tr != nil {
		m.notify(*tr)
	}
	return phase
}

// Step is Check without the onTransition call. Callers that keep their own
// state in line with the phase run Step under their lock and report the
// returned transition themselves.
func (m *Monitor) Step() (Phase, *Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var tr *Transition
	switch m.phase {
	case Active:
		if now.Sub(m.lastInteraction) > m.config.WarnAfter {
			m.phase = Warning
			m.warningStartedAt = now
			tr = &Transition{From: Active, To: Warning, Reason: ReasonTimeout, At: now}
		}
	case Warning:
		if now.Sub(m.warningStartedAt) >= m.config.Countdown {
			m.phase = Expired
			tr = &Transition{From: Warning, To: Expired, Reason: ReasonCountdown, At: now}
		}
	}
	return m.phase, tr
}

// Reset re-arms the monitor for a new session.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = Active
	m.lastInteraction = m.clock.Now()
	m.warningStartedAt = time.Time{}
}

// Start runs Check every CheckEvery until ctx is done or Stop is called.
// Calling Start on a running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.Schedule(ctx, func() { m.Check() })
}

// Schedule is Start with a custom check, typically one that calls Step under
// the caller's own lock.
func (m *Monitor) Schedule(ctx context.Context, check func()) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := m.clock.NewTicker(m.config.CheckEvery)
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				check()
			}
		}
	}()
}

// Stop cancels the periodic check and waits for it to exit. It must not be
// called from the transition callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the periodic check is scheduled.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) notify(tr Transition) {
	if m.onTransition != nil {
		m.onTransition(tr)
	}
}
