package session

import (
	"time"

	"github.com/wricardo/seatsession/reservation/directory"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/inactivity"
	"github.com/wricardo/seatsession/reservation/passenger"
)

// SeatView is a seat as shown to a user.
type SeatView struct {
	Number       int         `json:"number"`
	Status       grid.Status `json:"status"`
	OccupantID   int         `json:"occupantId,omitempty"`
	OccupantName string      `json:"occupantName,omitempty"`
}

// View is the read-only projection a presentation layer renders.
type View struct {
	SessionID          string             `json:"session_id"`
	VenueID            string             `json:"venue_id,omitempty"`
	VenueName          string             `json:"venue_name"`
	Columns            int                `json:"columns"`
	MaxSelectable      int                `json:"max_selectable"`
	Seats              []SeatView         `json:"seats"`
	Selection          []int              `json:"selection"`
	Passengers         []passenger.Record `json:"passengers"`
	Expanded           map[int]bool       `json:"expanded"`
	PricePerSeat       float64            `json:"price_per_seat"`
	TotalPrice         float64            `json:"total_price"`
	Currency           string             `json:"currency"`
	Phase              inactivity.Phase   `json:"phase"`
	IdleSeconds        float64            `json:"idle_seconds"`
	RemainingSeconds   float64            `json:"remaining_seconds"`
	DirectoryState     directory.State    `json:"directory_state"`
	PersistenceWarning string             `json:"persistence_warning,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Seat returns the seat with the given number.
func (v *View) Seat(number int) (SeatView, bool) {
	if number < 1 || number > len(v.Seats) {
		return SeatView{}, false
	}
	return v.Seats[number-1], true
}

// Passenger returns the record of a selected seat.
func (v *View) Passenger(seat int) (passenger.Record, bool) {
	for _, rec := range v.Passengers {
		if rec.Seat == seat {
			return rec, true
		}
	}
	return passenger.Record{}, false
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	Passengers []passenger.Record `json:"passengers"`
	TotalPrice float64            `json:"total_price"`
	Currency   string             `json:"currency"`
	View       *View              `json:"view"`
}
