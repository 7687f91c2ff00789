package grid

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the reservation state of a single seat
type Status string

const (
	Free     Status = "free"
	Occupied Status = "occupied"
	Selected Status = "selected"

	// Validation limits
	MinSeatCount     = 1
	MaxSeatCount     = 500
	MinMaxSelectable = 1
	MaxMaxSelectable = 20
)

// legacyStatuses maps the status spellings written by older clients.
var legacyStatuses = map[string]Status{
	"bos":     Free,
	"dolu":    Occupied,
	"secilen": Selected,
}

// UnmarshalJSON accepts the canonical status names and their legacy aliases.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch Status(raw) {
	case Free, Occupied, Selected:
		*s = Status(raw)
		return nil
	}
	if legacy, ok := legacyStatuses[raw]; ok {
		*s = legacy
		return nil
	}
	return fmt.Errorf("unknown seat status %q", raw)
}

// Seat is one position in the venue. OccupantID is zero when nobody holds the
// seat outside this session.
type Seat struct {
	Number     int    `json:"number"`
	Status     Status `json:"status"`
	OccupantID int    `json:"occupantId,omitempty"`
}

// Occupancy pins a seat to an occupant when a fresh session is generated.
type Occupancy struct {
	Seat       int `json:"seat"`
	OccupantID int `json:"occupant_id"`
}

// InactivitySettings configures the AFK guard of a session.
type InactivitySettings struct {
	WarnAfterSeconds   int `json:"warn_after_seconds"`
	CountdownSeconds   int `json:"countdown_seconds"`
	CheckIntervalMilli int `json:"check_interval_ms"`
}

// WarnAfter is the idle time that raises the warning.
func (s InactivitySettings) WarnAfter() time.Duration {
	return time.Duration(s.WarnAfterSeconds) * time.Second
}

// Countdown is how long the warning waits for a confirmation.
func (s InactivitySettings) Countdown() time.Duration {
	return time.Duration(s.CountdownSeconds) * time.Second
}

// CheckEvery is the cadence of the periodic inactivity check.
func (s InactivitySettings) CheckEvery() time.Duration {
	return time.Duration(s.CheckIntervalMilli) * time.Millisecond
}

// VenueConfig describes a seat layout and its reservation rules, loaded from JSON
type VenueConfig struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	SeatCount            int                `json:"seat_count"`
	Columns              int                `json:"columns"`
	MaxSelectable        int                `json:"max_selectable"`
	PricePerSeat         float64            `json:"price_per_seat"`
	Currency             string             `json:"currency"`
	PreOccupied          []Occupancy        `json:"pre_occupied"`
	MaxPassengerAgeYears int                `json:"max_passenger_age_years"`
	Inactivity           InactivitySettings `json:"inactivity"`
}
