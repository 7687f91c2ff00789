package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidVenue is wrapped by every venue validation failure.
var ErrInvalidVenue = errors.New("invalid venue config")

// ValidateVenueConfig checks a venue configuration for consistency.
func ValidateVenueConfig(cfg *VenueConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidVenue)
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVenue)
	}
	if cfg.SeatCount < MinSeatCount || cfg.SeatCount > MaxSeatCount {
		return fmt.Errorf("%w: seat_count must be between %d and %d, got %d",
			ErrInvalidVenue, MinSeatCount, MaxSeatCount, cfg.SeatCount)
	}
	if cfg.Columns < 0 {
		return fmt.Errorf("%w: columns cannot be negative", ErrInvalidVenue)
	}
	if cfg.MaxSelectable < MinMaxSelectable || cfg.MaxSelectable > MaxMaxSelectable {
		return fmt.Errorf("%w: max_selectable must be between %d and %d, got %d",
			ErrInvalidVenue, MinMaxSelectable, MaxMaxSelectable, cfg.MaxSelectable)
	}
	if cfg.PricePerSeat < 0 {
		return fmt.Errorf("%w: price_per_seat cannot be negative", ErrInvalidVenue)
	}
	if cfg.MaxPassengerAgeYears < 0 {
		return fmt.Errorf("%w: max_passenger_age_years cannot be negative", ErrInvalidVenue)
	}

	seen := make(map[int]bool, len(cfg.PreOccupied))
	for _, occ := range cfg.PreOccupied {
		if occ.Seat < 1 || occ.Seat > cfg.SeatCount {
			return fmt.Errorf("%w: pre-occupied seat %d outside 1..%d", ErrInvalidVenue, occ.Seat, cfg.SeatCount)
		}
		if occ.OccupantID <= 0 {
			return fmt.Errorf("%w: pre-occupied seat %d needs a positive occupant_id", ErrInvalidVenue, occ.Seat)
		}
		if seen[occ.Seat] {
			return fmt.Errorf("%w: seat %d is pre-occupied twice", ErrInvalidVenue, occ.Seat)
		}
		seen[occ.Seat] = true
	}
	if len(cfg.PreOccupied) == cfg.SeatCount {
		return fmt.Errorf("%w: every seat is pre-occupied", ErrInvalidVenue)
	}

	in := cfg.Inactivity
	if in.WarnAfterSeconds <= 0 || in.CountdownSeconds <= 0 || in.CheckIntervalMilli <= 0 {
		return fmt.Errorf("%w: inactivity timings must be positive", ErrInvalidVenue)
	}

	return nil
}

// ReferenceVenue returns the built-in venue: 76 seats, the first ten held by
// occupants 1..10, at most three selectable at 1000 TL each.
func ReferenceVenue() *VenueConfig {
	occupied := make([]Occupancy, 0, 10)
	for i := 1; i <= 10; i++ {
		occupied = append(occupied, Occupancy{Seat: i, OccupantID: i})
	}

	return &VenueConfig{
		Name:                 "reference",
		Description:          "76-seat coach, seats 1-10 already sold",
		SeatCount:            76,
		Columns:              4,
		MaxSelectable:        3,
		PricePerSeat:         1000,
		Currency:             "TL",
		PreOccupied:          occupied,
		MaxPassengerAgeYears: 150,
		Inactivity: InactivitySettings{
			WarnAfterSeconds:   30,
			CountdownSeconds:   30,
			CheckIntervalMilli: 1000,
		},
	}
}
