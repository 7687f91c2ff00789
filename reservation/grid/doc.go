// Package grid holds the seat reservation state of a single session.
//
// The grid package implements:
//   - Seat generation from a venue configuration
//   - Selection toggling with the occupancy and selection-limit rules
//   - Passenger record lifecycle tied to the selection
//   - Price derivation
//   - Snapshot capture, encoding and restore
//
// Core Types:
//
// Grid owns the seats, the ordered selection and the passenger records and
// keeps the three in agreement. VenueConfig describes the layout and rules
// loaded from JSON. Snapshot is the persisted projection of a grid.
//
// Usage:
//
//	g, err := grid.New(grid.ReferenceVenue())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if _, err := g.Toggle(11); errors.Is(err, grid.ErrSelectionLimitReached) {
//		// tell the user
//	}
//
//	values, _ := g.Snapshot().Encode()
//	for key, value := range values {
//		store.Set(ctx, key, value)
//	}
package grid
