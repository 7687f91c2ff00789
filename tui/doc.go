// Package tui is a terminal front end for a single reservation session.
//
// The model drives an in-process session controller: it renders the seat
// grid with lipgloss, calls the controller on key presses and runs the
// inactivity check on a tea.Tick at the venue's check cadence, so warnings
// and expiry show up without any input.
package tui
