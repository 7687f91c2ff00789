package service

import (
	"context"

	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/session"
)

// ReservationService defines every operation the transports expose
type ReservationService interface {
	// Session Management
	CreateSession(ctx context.Context, venueID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Reservation Operations
	GetView(ctx context.Context, sessionID string) (*session.View, error)
	SelectSeat(ctx context.Context, sessionID string, seat int) (*session.View, error)
	ConfirmContinue(ctx context.Context, sessionID string) (*session.View, error)
	CancelSession(ctx context.Context, sessionID string) (*session.View, error)
	RestartSession(ctx context.Context, sessionID string) (*session.View, error)
	UpdatePassenger(ctx context.Context, sessionID string, rec passenger.Record) (*session.View, error)
	ToggleForm(ctx context.Context, sessionID string, seat int) (*session.View, error)
	SubmitPassengers(ctx context.Context, sessionID string, records []passenger.Record) (*session.SubmitResult, error)

	// Venues
	ListVenues(ctx context.Context) ([]*config.VenueInfo, error)
	GetVenue(ctx context.Context, venueID string) (*grid.VenueConfig, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(ctx context.Context, id, venueID string, venue *grid.VenueConfig) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	List() []*session.Session
	Delete(ctx context.Context, id string) error
}

// ConfigManager handles venue configuration loading
type ConfigManager interface {
	LoadConfig(id string) (*grid.VenueConfig, error)
	ListConfigs() ([]*config.VenueInfo, error)
	GetDefault() *grid.VenueConfig
}
