package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/wricardo/seatsession/reservation/passenger"
)

// Keys under which a snapshot is persisted.
const (
	KeySeats         = "seats"
	KeySelectedSeats = "selectedSeats"
	KeyTotalPrice    = "totalPrice"
)

// SnapshotKeys lists every persisted key, in write order.
var SnapshotKeys = []string{KeySeats, KeySelectedSeats, KeyTotalPrice}

var (
	ErrNoSnapshot      = errors.New("no snapshot")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Snapshot is the persisted projection of a grid. Passenger records are not
// part of it.
type Snapshot struct {
	Seats         []Seat  `json:"seats"`
	SelectedSeats []int   `json:"selectedSeats"`
	TotalPrice    float64 `json:"totalPrice"`
}

// Snapshot captures the current seats and selection.
func (g *Grid) Snapshot() Snapshot {
	return Snapshot{
		Seats:         g.Seats(),
		SelectedSeats: g.Selection(),
		TotalPrice:    g.Total(),
	}
}

// Restore replaces the grid state with snap after checking it against the
// venue. Selected seats get fresh empty passenger records. On error the grid
// is unchanged.
func (g *Grid) Restore(snap Snapshot) error {
	if err := verify(g.config, snap.Seats, snap.SelectedSeats, len(snap.SelectedSeats)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	seats := make([]Seat, len(snap.Seats))
	copy(seats, snap.Seats)
	selection := make([]int, len(snap.SelectedSeats))
	copy(selection, snap.SelectedSeats)

	passengers := make(map[int]passenger.Record, len(selection))
	for _, n := range selection {
		if rec, ok := g.passengers[n]; ok {
			passengers[n] = rec
		} else {
			passengers[n] = passenger.Empty(n)
		}
	}

	g.seats = seats
	g.selection = selection
	g.passengers = passengers
	return nil
}

// Encode renders the snapshot as the string values stored per key.
func (s Snapshot) Encode() (map[string]string, error) {
	seats, err := json.Marshal(s.Seats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seats: %w", err)
	}

	selected := s.SelectedSeats
	if selected == nil {
		selected = []int{}
	}
	selection, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selection: %w", err)
	}

	return map[string]string{
		KeySeats:         string(seats),
		KeySelectedSeats: string(selection),
		KeyTotalPrice:    strconv.FormatFloat(s.TotalPrice, 'f', -1, 64),
	}, nil
}

// DecodeSnapshot parses stored values. A missing seats or selectedSeats key
// yields ErrNoSnapshot; unparseable values yield ErrInvalidSnapshot. The total
// price is derived data and is ignored when absent or malformed.
func DecodeSnapshot(values map[string]string) (Snapshot, error) {
	var snap Snapshot

	rawSeats, ok := values[KeySeats]
	if !ok {
		return snap, ErrNoSnapshot
	}
	rawSelection, ok := values[KeySelectedSeats]
	if !ok {
		return snap, ErrNoSnapshot
	}

	if err := json.Unmarshal([]byte(rawSeats), &snap.Seats); err != nil {
		return Snapshot{}, fmt.Errorf("%w: seats: %v", ErrInvalidSnapshot, err)
	}
	if err := json.Unmarshal([]byte(rawSelection), &snap.SelectedSeats); err != nil {
		return Snapshot{}, fmt.Errorf("%w: selectedSeats: %v", ErrInvalidSnapshot, err)
	}
	if snap.SelectedSeats == nil {
		snap.SelectedSeats = []int{}
	}

	if rawTotal, ok := values[KeyTotalPrice]; ok {
		if total, err := strconv.ParseFloat(rawTotal, 64); err == nil {
			snap.TotalPrice = total
		}
	}

	return snap, nil
}
