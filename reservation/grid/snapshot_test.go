package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/seatsession/reservation/passenger"
)

func TestSnapshot_EncodeDecodeRestore(t *testing.T) {
	g, err := New(createTestVenue())
	require.NoError(t, err)
	_, _ = g.Toggle(6)
	_, _ = g.Toggle(3)

	values, err := g.Snapshot().Encode()
	require.NoError(t, err)
	assert.Equal(t, "[6,3]", values[KeySelectedSeats])
	assert.Equal(t, "500", values[KeyTotalPrice])

	snap, err := DecodeSnapshot(values)
	require.NoError(t, err)

	restored, err := New(createTestVenue())
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, g.Seats(), restored.Seats())
	assert.Equal(t, g.Selection(), restored.Selection())
	assert.Equal(t, []passenger.Record{passenger.Empty(6), passenger.Empty(3)}, restored.Passengers())
	assert.NoError(t, restored.Verify())
}

func TestRestore_Idempotent(t *testing.T) {
	g, err := New(createTestVenue())
	require.NoError(t, err)
	_, _ = g.Toggle(4)
	snap := g.Snapshot()

	target, err := New(createTestVenue())
	require.NoError(t, err)
	require.NoError(t, target.Restore(snap))
	onceSeats, onceSel := target.Seats(), target.Selection()

	require.NoError(t, target.Restore(snap))
	assert.Equal(t, onceSeats, target.Seats())
	assert.Equal(t, onceSel, target.Selection())
	assert.Len(t, target.Passengers(), 1)
}

func TestDecodeSnapshot_MissingKeys(t *testing.T) {
	_, err := DecodeSnapshot(map[string]string{})
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = DecodeSnapshot(map[string]string{KeySeats: "[]"})
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	_, err := DecodeSnapshot(map[string]string{KeySeats: "{not json", KeySelectedSeats: "[]"})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = DecodeSnapshot(map[string]string{KeySeats: "[]", KeySelectedSeats: `"x"`})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestDecodeSnapshot_LegacyStatuses(t *testing.T) {
	values := map[string]string{
		KeySeats:         `[{"number":1,"status":"dolu","occupantId":1},{"number":2,"status":"secilen"},{"number":3,"status":"bos"}]`,
		KeySelectedSeats: `[2]`,
	}

	snap, err := DecodeSnapshot(values)
	require.NoError(t, err)
	assert.Equal(t, []Seat{
		{Number: 1, Status: Occupied, OccupantID: 1},
		{Number: 2, Status: Selected},
		{Number: 3, Status: Free},
	}, snap.Seats)
}

func TestRestore_RejectsInconsistentSnapshots(t *testing.T) {
	base, err := New(createTestVenue())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"wrong seat count", func(s *Snapshot) { s.Seats = s.Seats[:5] }},
		{"selection without status", func(s *Snapshot) { s.SelectedSeats = []int{4} }},
		{"status without selection", func(s *Snapshot) { s.Seats[4].Status = Selected }},
		{"selected occupied seat", func(s *Snapshot) { s.SelectedSeats = []int{1} }},
		{"duplicate selection", func(s *Snapshot) {
			s.Seats[4].Status = Selected
			s.SelectedSeats = []int{5, 5}
		}},
		{"selected seat with occupant", func(s *Snapshot) {
			s.Seats[4] = Seat{Number: 5, Status: Selected, OccupantID: 3}
			s.SelectedSeats = []int{5}
		}},
		{"over the limit", func(s *Snapshot) {
			for _, n := range []int{3, 4, 5} {
				s.Seats[n-1].Status = Selected
			}
			s.SelectedSeats = []int{3, 4, 5}
		}},
		{"renumbered seats", func(s *Snapshot) { s.Seats[2].Number = 30 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base.Snapshot()
			tt.mutate(&snap)

			g, err := New(createTestVenue())
			require.NoError(t, err)
			before := g.Seats()

			assert.ErrorIs(t, g.Restore(snap), ErrInvalidSnapshot)
			assert.Equal(t, before, g.Seats())
		})
	}
}
