package inactivity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) record(tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
}

func (r *recorder) all() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func newTestMonitor() (*Monitor, clockwork.FakeClock, *recorder) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	rec := &recorder{}
	return New(clock, DefaultConfig(), rec.record), clock, rec
}

func TestMonitor_StartsActive(t *testing.T) {
	m, _, _ := newTestMonitor()
	assert.Equal(t, Active, m.Phase())
	assert.Equal(t, Active, m.Check())
}

func TestMonitor_WarnThenExpire(t *testing.T) {
	m, clock, rec := newTestMonitor()

	clock.Advance(30 * time.Second)
	assert.Equal(t, Active, m.Check(), "threshold must be exceeded, not reached")

	clock.Advance(time.Second)
	assert.Equal(t, Warning, m.Check())
	st := m.Status()
	assert.Equal(t, 30*time.Second, st.Remaining)

	clock.Advance(29 * time.Second)
	assert.Equal(t, Warning, m.Check())
	assert.Equal(t, time.Second, m.Status().Remaining)

	clock.Advance(time.Second)
	assert.Equal(t, Expired, m.Check())

	transitions := rec.all()
	require.Len(t, transitions, 2)
	assert.Equal(t, Transition{From: Active, To: Warning, Reason: ReasonTimeout, At: transitions[0].At}, transitions[0])
	assert.Equal(t, Warning, transitions[1].From)
	assert.Equal(t, Expired, transitions[1].To)
	assert.Equal(t, ReasonCountdown, transitions[1].Reason)
}

func TestMonitor_ConfirmDuringWarning(t *testing.T) {
	m, clock, _ := newTestMonitor()

	clock.Advance(31 * time.Second)
	require.Equal(t, Warning, m.Check())

	clock.Advance(10 * time.Second)
	require.NoError(t, m.Confirm())
	assert.Equal(t, Active, m.Phase())
	assert.Zero(t, m.Status().IdleFor)

	// the countdown is gone: a full new idle period is needed
	clock.Advance(29 * time.Second)
	assert.Equal(t, Active, m.Check())
	clock.Advance(2 * time.Second)
	assert.Equal(t, Warning, m.Check())
}

func TestMonitor_TouchCancelsWarning(t *testing.T) {
	m, clock, _ := newTestMonitor()

	clock.Advance(31 * time.Second)
	require.Equal(t, Warning, m.Check())
	require.NoError(t, m.Touch())
	assert.Equal(t, Active, m.Phase())
}

func TestMonitor_TouchPostponesWarning(t *testing.T) {
	m, clock, _ := newTestMonitor()

	clock.Advance(20 * time.Second)
	require.NoError(t, m.Touch())
	clock.Advance(20 * time.Second)
	assert.Equal(t, Active, m.Check())
}

func TestMonitor_Cancel(t *testing.T) {
	m, _, rec := newTestMonitor()

	assert.True(t, m.Cancel())
	assert.Equal(t, Expired, m.Phase())
	assert.False(t, m.Cancel(), "second cancel is a no-op")

	transitions := rec.all()
	require.Len(t, transitions, 1)
	assert.Equal(t, ReasonCancelled, transitions[0].Reason)
	assert.Equal(t, Active, transitions[0].From)
}

func TestMonitor_StepAndExpireSkipCallback(t *testing.T) {
	m, clock, rec := newTestMonitor()

	clock.Advance(31 * time.Second)
	phase, tr := m.Step()
	assert.Equal(t, Warning, phase)
	require.NotNil(t, tr)
	assert.Equal(t, ReasonTimeout, tr.Reason)

	phase, tr = m.Step()
	assert.Equal(t, Warning, phase)
	assert.Nil(t, tr, "no transition while the countdown runs")

	tr = m.Expire(ReasonCancelled)
	require.NotNil(t, tr)
	assert.Equal(t, Warning, tr.From)
	assert.Equal(t, Expired, m.Phase())
	assert.Nil(t, m.Expire(ReasonCancelled), "already expired")

	assert.Empty(t, rec.all())
}

func TestMonitor_ExpiredIsTerminalUntilReset(t *testing.T) {
	m, clock, _ := newTestMonitor()
	m.Cancel()

	assert.ErrorIs(t, m.Touch(), ErrExpired)
	assert.ErrorIs(t, m.Confirm(), ErrExpired)
	clock.Advance(time.Hour)
	assert.Equal(t, Expired, m.Check())

	m.Reset()
	assert.Equal(t, Active, m.Phase())
	clock.Advance(30 * time.Second)
	assert.Equal(t, Active, m.Check())
}

func TestMonitor_DefaultsForZeroConfig(t *testing.T) {
	m := New(nil, Config{}, nil)
	assert.Equal(t, DefaultConfig(), m.Config())
}

func TestMonitor_StartStop(t *testing.T) {
	m, clock, _ := newTestMonitor()

	m.Start(context.Background())
	m.Start(context.Background())
	assert.True(t, m.Running())

	clock.BlockUntil(1)
	clock.Advance(31 * time.Second)
	assert.Eventually(t, func() bool { return m.Phase() == Warning }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	m.Stop()
}

func TestMonitor_ScheduleRunsCustomCheck(t *testing.T) {
	m, clock, _ := newTestMonitor()
	var mu sync.Mutex
	var phases []Phase

	m.Schedule(context.Background(), func() {
		phase, _ := m.Step()
		mu.Lock()
		phases = append(phases, phase)
		mu.Unlock()
	})
	defer m.Stop()

	clock.BlockUntil(1)
	clock.Advance(31 * time.Second)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) > 0 && phases[len(phases)-1] == Warning
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_StopsWithContext(t *testing.T) {
	m, clock, _ := newTestMonitor()
	ctx, cancel := context.WithCancel(context.Background())

	m.Start(ctx)
	clock.BlockUntil(1)
	cancel()

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		done := m.done
		m.mu.Unlock()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Stop after the context ended must still return
	m.Stop()
}
