// Package events publishes best-effort domain events about reservation
// sessions. A failed publish is logged by the caller and never changes
// session state.
package events

import (
	"context"
	"errors"
	"time"
)

// Event names
const (
	SeatSelected        = "seat.selected"
	SeatReleased        = "seat.released"
	PassengersSubmitted = "passengers.submitted"
	SessionCreated      = "session.created"
	SessionWarning      = "session.warning"
	SessionExpired      = "session.expired"
	SessionCancelled    = "session.cancelled"
	SessionRestarted    = "session.restarted"
	SessionDeleted      = "session.deleted"
)

// Change notifications pushed to clients but not published to sinks.
const (
	PassengerUpdated = "passenger.updated"
	FormToggled      = "form.toggled"
	SessionContinued = "session.continued"
	SubmitRejected   = "passengers.rejected"
)

// Event is one domain event.
type Event struct {
	Name       string    `json:"name"`
	SessionID  string    `json:"session_id"`
	Venue      string    `json:"venue,omitempty"`
	Seat       int       `json:"seat,omitempty"`
	Selection  []int     `json:"selection,omitempty"`
	TotalPrice float64   `json:"total_price"`
	Currency   string    `json:"currency,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
