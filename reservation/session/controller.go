package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/seatsession/reservation/directory"
	"github.com/wricardo/seatsession/reservation/events"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/inactivity"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/store"
)

// Directory resolves occupant ids to display names.
type Directory interface {
	Name(id int) string
	State() directory.State
}

type noDirectory struct{}

func (noDirectory) Name(int) string         { return directory.Unknown }
func (noDirectory) State() directory.State { return directory.NotLoaded }

// Options configures a Controller. Only Venue is required in practice; every
// other field has a working default.
type Options struct {
	ID        string
	VenueID   string
	Venue     *grid.VenueConfig
	Store     store.Store
	Clock     clockwork.Clock
	Validator *passenger.Validator
	Directory Directory
	Publisher events.Publisher
	Logger    logrus.FieldLogger

	// OnChange is called after every state change, including the ones made
	// by the inactivity monitor. It runs without any controller lock held.
	OnChange func(event string, view *View)
}

// Controller is the single entry point for one reservation session. It owns
// the seat grid, the inactivity monitor and the session's persisted keys.
type Controller struct {
	id        string
	venueID   string
	venue     *grid.VenueConfig
	store     store.Store
	clock     clockwork.Clock
	validator *passenger.Validator
	directory Directory
	publisher events.Publisher
	log       logrus.FieldLogger
	onChange  func(string, *View)
	monitor   *inactivity.Monitor

	mu             sync.Mutex
	grid           *grid.Grid
	expanded       map[int]bool
	restored       bool
	persistWarning string
}

// NewController restores the persisted snapshot or generates a fresh grid,
// writes the initial snapshot and arms the inactivity monitor. The periodic
// check only runs after Start.
func NewController(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Venue == nil {
		opts.Venue = grid.ReferenceVenue()
	}
	g, err := grid.New(opts.Venue)
	if err != nil {
		return nil, err
	}

	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Validator == nil {
		opts.Validator = passenger.NewValidator(opts.Clock, opts.Venue.MaxPassengerAgeYears)
	}
	if opts.Directory == nil {
		opts.Directory = noDirectory{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("pkg", "session")
	}

	c := &Controller{
		id:        opts.ID,
		venueID:   opts.VenueID,
		venue:     opts.Venue,
		store:     opts.Store,
		clock:     opts.Clock,
		validator: opts.Validator,
		directory: opts.Directory,
		publisher: opts.Publisher,
		log:       opts.Logger.WithField("session", opts.ID),
		onChange:  opts.OnChange,
		grid:      g,
		expanded:  make(map[int]bool),
	}

	c.restore(ctx)
	c.persistLocked(ctx)

	timings := opts.Venue.Inactivity
	c.monitor = inactivity.New(opts.Clock, inactivity.Config{
		WarnAfter:  timings.WarnAfter(),
		Countdown:  timings.Countdown(),
		CheckEvery: timings.CheckEvery(),
	}, nil)

	return c, nil
}

// restore loads a previous snapshot. Missing or unreadable state leaves the
// freshly generated grid in place.
func (c *Controller) restore(ctx context.Context) {
	values, err := store.GetMany(ctx, c.store, grid.SnapshotKeys...)
	if err != nil {
		c.log.WithError(err).Warn("failed to read snapshot, starting fresh")
		return
	}

	snap, err := grid.DecodeSnapshot(values)
	if errors.Is(err, grid.ErrNoSnapshot) {
		return
	}
	if err == nil {
		err = c.grid.Restore(snap)
	}
	if err != nil {
		c.log.WithError(err).Warn("discarding corrupt snapshot")
		return
	}

	c.restored = true
	c.log.WithField("selection", snap.SelectedSeats).Info("session restored")
}

// ID returns the session id
func (c *Controller) ID() string { return c.id }

// VenueID returns the id of the venue configuration
func (c *Controller) VenueID() string { return c.venueID }

// Venue returns the venue the session was created with
func (c *Controller) Venue() *grid.VenueConfig { return c.venue }

// Restored reports whether the session resumed from a persisted snapshot.
func (c *Controller) Restored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// Phase returns the inactivity phase
func (c *Controller) Phase() inactivity.Phase {
	return c.monitor.Phase()
}

// SelectSeat toggles a seat. On success the inactivity timer restarts and the
// snapshot is written; on failure nothing changes.
func (c *Controller) SelectSeat(ctx context.Context, seat int) (*View, error) {
	c.mu.Lock()
	if c.monitor.Phase() == inactivity.Expired {
		c.mu.Unlock()
		return nil, ErrSessionExpired
	}

	selected, err := c.grid.Toggle(seat)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.monitor.Touch(); err != nil {
		if _, undoErr := c.grid.Toggle(seat); undoErr != nil {
			c.log.WithError(undoErr).WithField("seat", seat).Error("failed to undo seat toggle")
		}
		c.mu.Unlock()
		return nil, ErrSessionExpired
	}

	name := events.SeatReleased
	if selected {
		name = events.SeatSelected
		c.expanded[seat] = true
	} else {
		delete(c.expanded, seat)
	}
	c.persistLocked(ctx)
	ev := c.eventLocked(name, seat)
	c.mu.Unlock()

	c.publish(ctx, ev)
	return c.changed(name), nil
}

// ConfirmContinue answers the inactivity warning.
func (c *Controller) ConfirmContinue(ctx context.Context) (*View, error) {
	c.mu.Lock()
	err := c.monitor.Confirm()
	c.mu.Unlock()

	if errors.Is(err, inactivity.ErrExpired) {
		return nil, ErrSessionExpired
	}
	return c.changed(events.SessionContinued), nil
}

// CancelSession expires the session now. Cancelling an expired session is a
// no-op.
func (c *Controller) CancelSession(ctx context.Context) (*View, error) {
	c.mu.Lock()
	tr := c.monitor.Expire(inactivity.ReasonCancelled)
	var ev events.Event
	if tr != nil {
		ev = c.expireLocked(ctx, tr.Reason)
	}
	c.mu.Unlock()

	if tr != nil {
		c.announce(ctx, *tr, ev)
	}
	return c.View(), nil
}

// UpdatePassenger stores a draft record without validating it.
func (c *Controller) UpdatePassenger(ctx context.Context, rec passenger.Record) (*View, error) {
	c.mu.Lock()
	if c.monitor.Phase() == inactivity.Expired {
		c.mu.Unlock()
		return nil, ErrSessionExpired
	}
	if err := c.grid.SetPassenger(rec); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	return c.changed(events.PassengerUpdated), nil
}

// ToggleForm flips the expanded flag of a selected seat's form.
func (c *Controller) ToggleForm(seat int) (*View, error) {
	c.mu.Lock()
	if !c.grid.IsSelected(seat) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", grid.ErrSeatNotSelected, seat)
	}
	c.expanded[seat] = !c.expanded[seat]
	c.mu.Unlock()

	return c.changed(events.FormToggled), nil
}

// SubmitPassengers merges records into the drafts and validates every selected
// seat. A rejected submission returns a *ValidationError and opens every form.
func (c *Controller) SubmitPassengers(ctx context.Context, records []passenger.Record) (*SubmitResult, error) {
	c.mu.Lock()
	if c.monitor.Phase() == inactivity.Expired {
		c.mu.Unlock()
		return nil, ErrSessionExpired
	}
	selection := c.grid.Selection()
	if len(selection) == 0 {
		c.mu.Unlock()
		return nil, ErrNoSeatsSelected
	}

	invalid := ValidationErrorMap{}
	for _, rec := range records {
		if err := c.grid.SetPassenger(rec); err != nil {
			invalid[rec.Seat] = passenger.Errors{"seat": fmt.Sprintf("Seat %d is not selected", rec.Seat)}
		}
	}
	for seat, errs := range c.validator.ValidateAll(c.grid.Passengers()) {
		invalid[seat] = errs
	}

	if len(invalid) > 0 {
		for _, n := range selection {
			c.expanded[n] = true
		}
		c.mu.Unlock()

		c.log.WithField("seats", len(invalid)).Debug("submission rejected")
		c.changed(events.SubmitRejected)
		return nil, &ValidationError{Errors: invalid}
	}

	result := &SubmitResult{
		Passengers: c.grid.Passengers(),
		TotalPrice: c.grid.Total(),
		Currency:   c.venue.Currency,
	}
	ev := c.eventLocked(events.PassengersSubmitted, 0)
	c.mu.Unlock()

	c.publish(ctx, ev)
	result.View = c.changed(events.PassengersSubmitted)
	return result, nil
}

// Restart re-arms an expired session with an empty selection.
func (c *Controller) Restart(ctx context.Context) (*View, error) {
	c.mu.Lock()
	if c.monitor.Phase() != inactivity.Expired {
		c.mu.Unlock()
		return nil, ErrSessionNotExpired
	}
	c.grid.Reset()
	c.expanded = make(map[int]bool)
	c.monitor.Reset()
	c.persistLocked(ctx)
	ev := c.eventLocked(events.SessionRestarted, 0)
	c.mu.Unlock()

	c.publish(ctx, ev)
	return c.changed(events.SessionRestarted), nil
}

// Tick runs one inactivity check immediately. An expiry resets the grid in
// the same critical section that changes the phase.
func (c *Controller) Tick() inactivity.Phase {
	ctx := context.Background()

	c.mu.Lock()
	phase, tr := c.monitor.Step()
	var ev events.Event
	if tr != nil && tr.To == inactivity.Expired {
		ev = c.expireLocked(ctx, tr.Reason)
	}
	c.mu.Unlock()

	if tr != nil {
		c.announce(ctx, *tr, ev)
	}
	return phase
}

// Start schedules the periodic inactivity check.
func (c *Controller) Start(ctx context.Context) {
	c.monitor.Schedule(ctx, func() { c.Tick() })
}

// Close stops the periodic check. Persisted state is kept.
func (c *Controller) Close() {
	c.monitor.Stop()
}

// View returns the current projection.
func (c *Controller) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() *View {
	status := c.monitor.Status()

	seats := c.grid.Seats()
	seatViews := make([]SeatView, len(seats))
	for i, s := range seats {
		seatViews[i] = SeatView{Number: s.Number, Status: s.Status, OccupantID: s.OccupantID}
		if s.OccupantID != 0 {
			seatViews[i].OccupantName = c.directory.Name(s.OccupantID)
		}
	}

	expanded := make(map[int]bool, len(c.expanded))
	for seat, open := range c.expanded {
		expanded[seat] = open
	}

	return &View{
		SessionID:          c.id,
		VenueID:            c.venueID,
		VenueName:          c.venue.Name,
		Columns:            c.venue.Columns,
		MaxSelectable:      c.venue.MaxSelectable,
		Seats:              seatViews,
		Selection:          c.grid.Selection(),
		Passengers:         c.grid.Passengers(),
		Expanded:           expanded,
		PricePerSeat:       c.venue.PricePerSeat,
		TotalPrice:         c.grid.Total(),
		Currency:           c.venue.Currency,
		Phase:              status.Phase,
		IdleSeconds:        status.IdleFor.Seconds(),
		RemainingSeconds:   status.Remaining.Seconds(),
		DirectoryState:     c.directory.State(),
		PersistenceWarning: c.persistWarning,
		UpdatedAt:          c.clock.Now(),
	}
}

// announce reports a transition once the controller lock is released. ev is
// the event built by expireLocked for an expiry.
func (c *Controller) announce(ctx context.Context, tr inactivity.Transition, ev events.Event) {
	log := c.log.WithFields(logrus.Fields{"from": tr.From, "to": tr.To, "reason": tr.Reason})

	switch tr.To {
	case inactivity.Warning:
		log.Info("session idle, warning raised")
		c.changed(events.SessionWarning)
	case inactivity.Expired:
		log.Info("session expired")
		c.publish(ctx, ev)
		c.changed(ev.Name)
	}
}

// expireLocked discards the selection and its persisted keys.
func (c *Controller) expireLocked(ctx context.Context, reason string) events.Event {
	name := events.SessionExpired
	if reason == inactivity.ReasonCancelled {
		name = events.SessionCancelled
	}
	ev := c.eventLocked(name, 0)
	c.grid.Reset()
	c.expanded = make(map[int]bool)
	c.purgeLocked(ctx)
	return ev
}

func (c *Controller) persistLocked(ctx context.Context) error {
	values, err := c.grid.Snapshot().Encode()
	if err == nil {
		for _, key := range grid.SnapshotKeys {
			if err = c.store.Set(ctx, key, values[key]); err != nil {
				break
			}
		}
	}
	return c.recordPersistence("write snapshot", err)
}

func (c *Controller) purgeLocked(ctx context.Context) error {
	return c.recordPersistence("purge snapshot", store.RemoveMany(ctx, c.store, grid.SnapshotKeys...))
}

// recordPersistence logs a failed store operation and keeps it as a warning
// on the view. The session carries on in memory.
func (c *Controller) recordPersistence(op string, err error) error {
	if err == nil {
		c.persistWarning = ""
		return nil
	}
	err = fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, op, err)
	c.log.WithError(err).Warn("session state not persisted")
	c.persistWarning = err.Error()
	return err
}

func (c *Controller) eventLocked(name string, seat int) events.Event {
	venue := c.venueID
	if venue == "" {
		venue = c.venue.Name
	}
	return events.Event{
		Name:       name,
		SessionID:  c.id,
		Venue:      venue,
		Seat:       seat,
		Selection:  c.grid.Selection(),
		TotalPrice: c.grid.Total(),
		Currency:   c.venue.Currency,
		At:         c.clock.Now(),
	}
}

func (c *Controller) publish(ctx context.Context, ev events.Event) {
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.log.WithError(err).WithField("event", ev.Name).Warn("failed to publish event")
	}
}

// changed builds the view and hands it to OnChange.
func (c *Controller) changed(event string) *View {
	v := c.View()
	if c.onChange != nil {
		c.onChange(event, v)
	}
	return v
}
