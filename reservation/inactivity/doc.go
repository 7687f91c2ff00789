// Package inactivity implements the AFK guard of a reservation session.
//
// A Monitor starts Active. When no interaction happens for WarnAfter, a
// periodic Check moves it to Warning and starts a countdown of Countdown.
// Touch or Confirm during the countdown returns it to Active; letting the
// countdown run out, or calling Cancel, moves it to Expired. Expired is
// terminal until Reset.
//
// Time comes from a clockwork.Clock so tests can use a fake clock and call
// Check directly instead of waiting:
//
//	clock := clockwork.NewFakeClock()
//	m := inactivity.New(clock, inactivity.DefaultConfig(), nil)
//	clock.Advance(31 * time.Second)
//	m.Check() // inactivity.Warning
//
// Start schedules Check on a ticker in a single goroutine; Stop cancels it.
package inactivity
