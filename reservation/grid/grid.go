package grid

import (
	"errors"
	"fmt"

	"github.com/wricardo/seatsession/reservation/passenger"
)

var (
	ErrSeatNotFound          = errors.New("seat not found")
	ErrAlreadyOccupied       = errors.New("seat is already occupied")
	ErrSelectionLimitReached = errors.New("selection limit reached")
	ErrSeatNotSelected       = errors.New("seat is not selected")
)

// Grid owns the seat collection, the ordered selection and the passenger
// record of every selected seat. It is not safe for concurrent use; the
// session controller serialises access.
type Grid struct {
	config     *VenueConfig
	seats      []Seat
	selection  []int
	passengers map[int]passenger.Record
}

// New builds a fresh grid from the venue: every seat free except the
// pre-occupied ones.
func New(config *VenueConfig) (*Grid, error) {
	if err := ValidateVenueConfig(config); err != nil {
		return nil, err
	}

	g := &Grid{config: config}
	g.generate()
	return g, nil
}

func (g *Grid) generate() {
	g.seats = make([]Seat, g.config.SeatCount)
	for i := range g.seats {
		g.seats[i] = Seat{Number: i + 1, Status: Free}
	}
	for _, occ := range g.config.PreOccupied {
		g.seats[occ.Seat-1] = Seat{Number: occ.Seat, Status: Occupied, OccupantID: occ.OccupantID}
	}
	g.selection = []int{}
	g.passengers = make(map[int]passenger.Record)
}

// Config returns the venue the grid was built from.
func (g *Grid) Config() *VenueConfig {
	return g.config
}

// Seat returns a copy of one seat.
func (g *Grid) Seat(number int) (Seat, error) {
	if number < 1 || number > len(g.seats) {
		return Seat{}, fmt.Errorf("%w: %d", ErrSeatNotFound, number)
	}
	return g.seats[number-1], nil
}

// Seats returns a copy of the seat collection ordered by number.
func (g *Grid) Seats() []Seat {
	out := make([]Seat, len(g.seats))
	copy(out, g.seats)
	return out
}

// Selection returns the selected seat numbers in selection order.
func (g *Grid) Selection() []int {
	out := make([]int, len(g.selection))
	copy(out, g.selection)
	return out
}

// IsSelected reports whether the seat is part of the selection.
func (g *Grid) IsSelected(number int) bool {
	return g.indexOf(number) >= 0
}

// Toggle selects a free seat or releases a selected one. Failures leave the
// grid untouched. The returned flag is true when the seat became selected.
func (g *Grid) Toggle(number int) (bool, error) {
	if number < 1 || number > len(g.seats) {
		return false, fmt.Errorf("%w: %d", ErrSeatNotFound, number)
	}

	seat := &g.seats[number-1]
	switch seat.Status {
	case Occupied:
		return false, fmt.Errorf("%w: %d", ErrAlreadyOccupied, number)

	case Selected:
		seat.Status = Free
		if idx := g.indexOf(number); idx >= 0 {
			g.selection = append(g.selection[:idx], g.selection[idx+1:]...)
		}
		delete(g.passengers, number)
		return false, nil

	default:
		if len(g.selection) >= g.config.MaxSelectable {
			return false, fmt.Errorf("%w: at most %d seats", ErrSelectionLimitReached, g.config.MaxSelectable)
		}
		seat.Status = Selected
		g.selection = append(g.selection, number)
		g.passengers[number] = passenger.Empty(number)
		return true, nil
	}
}

// Price returns the selection size multiplied by perSeat.
func (g *Grid) Price(perSeat float64) float64 {
	return float64(len(g.selection)) * perSeat
}

// Total returns the price of the selection at the venue's seat price.
func (g *Grid) Total() float64 {
	return g.Price(g.config.PricePerSeat)
}

// Reset clears the selection and its passenger records. Seats held by other
// occupants keep their state.
func (g *Grid) Reset() {
	for i := range g.seats {
		if g.seats[i].Status == Selected {
			g.seats[i].Status = Free
		}
	}
	g.selection = []int{}
	g.passengers = make(map[int]passenger.Record)
}

// Passenger returns the record of a selected seat.
func (g *Grid) Passenger(number int) (passenger.Record, bool) {
	rec, ok := g.passengers[number]
	return rec, ok
}

// Passengers returns the records in selection order.
func (g *Grid) Passengers() []passenger.Record {
	out := make([]passenger.Record, 0, len(g.selection))
	for _, n := range g.selection {
		out = append(out, g.passengers[n])
	}
	return out
}

// SetPassenger replaces the record of a selected seat.
func (g *Grid) SetPassenger(rec passenger.Record) error {
	if !g.IsSelected(rec.Seat) {
		return fmt.Errorf("%w: %d", ErrSeatNotSelected, rec.Seat)
	}
	g.passengers[rec.Seat] = rec
	return nil
}

// Verify checks that seats, selection and passenger records agree.
func (g *Grid) Verify() error {
	return verify(g.config, g.seats, g.selection, len(g.passengers))
}

func (g *Grid) indexOf(number int) int {
	for i, n := range g.selection {
		if n == number {
			return i
		}
	}
	return -1
}

func verify(config *VenueConfig, seats []Seat, selection []int, records int) error {
	if len(seats) != config.SeatCount {
		return fmt.Errorf("expected %d seats, got %d", config.SeatCount, len(seats))
	}
	if len(selection) > config.MaxSelectable {
		return fmt.Errorf("%d seats selected, limit is %d", len(selection), config.MaxSelectable)
	}

	selectedCount := 0
	for i, seat := range seats {
		if seat.Number != i+1 {
			return fmt.Errorf("seat at position %d has number %d", i+1, seat.Number)
		}
		switch seat.Status {
		case Free, Selected:
			if seat.OccupantID != 0 {
				return fmt.Errorf("seat %d has occupant %d but is %s", seat.Number, seat.OccupantID, seat.Status)
			}
			if seat.Status == Selected {
				selectedCount++
			}
		case Occupied:
		default:
			return fmt.Errorf("seat %d has unknown status %q", seat.Number, seat.Status)
		}
	}

	seen := make(map[int]bool, len(selection))
	for _, n := range selection {
		if n < 1 || n > len(seats) {
			return fmt.Errorf("selected seat %d does not exist", n)
		}
		if seen[n] {
			return fmt.Errorf("seat %d selected twice", n)
		}
		seen[n] = true
		if seats[n-1].Status != Selected {
			return fmt.Errorf("seat %d is in the selection but %s", n, seats[n-1].Status)
		}
	}
	if selectedCount != len(selection) {
		return fmt.Errorf("%d seats marked selected, selection has %d", selectedCount, len(selection))
	}
	if records != len(selection) {
		return fmt.Errorf("%d passenger records for %d selected seats", records, len(selection))
	}
	return nil
}
