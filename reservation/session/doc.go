// Package session composes the seat grid, the inactivity monitor, the
// passenger validator and the persistent store into one reservation session.
//
// A Controller is the only thing a presentation layer talks to. Every
// operation is serialised by the controller's mutex. Inactivity checks run
// under the same mutex, so an expiry changes the phase, resets the grid and
// purges the persisted snapshot in one step.
//
// Persistence is best effort: a failing store is logged and surfaced as
// View.PersistenceWarning, the session keeps working in memory.
//
// Usage:
//
//	ctrl, err := session.NewController(ctx, session.Options{
//		ID:    "demo",
//		Venue: grid.ReferenceVenue(),
//		Store: store.NewMemory(),
//		OnChange: func(event string, v *session.View) {
//			hub.Broadcast(v.SessionID, event, v)
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	ctrl.Start(ctx)
//	defer ctrl.Close()
//
//	view, err := ctrl.SelectSeat(ctx, 12)
//	switch {
//	case errors.Is(err, grid.ErrAlreadyOccupied):
//	case errors.Is(err, grid.ErrSelectionLimitReached):
//	case errors.Is(err, session.ErrSessionExpired):
//	}
//
// A Manager owns many controllers keyed by session id, each in its own
// "session:<id>:" namespace of a shared store, and keeps a "sessions" index so
// they can be reopened after a restart with LoadPersisted.
package session
