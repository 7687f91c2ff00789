package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/session"
)

// reservationServiceImpl implements the ReservationService interface
type reservationServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
}

// NewReservationService creates a new reservation service instance
func NewReservationService(sessions SessionManager, configs ConfigManager) ReservationService {
	return &reservationServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// Resolver adapts a ConfigManager to the session manager's venue lookup. The
// default venue answers for its own id even when no file backs it.
func Resolver(configs ConfigManager) session.VenueResolver {
	return func(venueID string) (*grid.VenueConfig, error) {
		cfg, err := configs.LoadConfig(venueID)
		if err == nil {
			return cfg, nil
		}
		if def := configs.GetDefault(); def != nil && (venueID == "" || venueID == config.DefaultVenueID || venueID == def.Name) {
			return def, nil
		}
		return nil, err
	}
}

// CreateSession creates a session on the given venue, or the default venue
// when venueID is empty
func (s *reservationServiceImpl) CreateSession(ctx context.Context, venueID string) (*SessionInfo, error) {
	var venue *grid.VenueConfig
	if venueID != "" {
		cfg, err := s.configs.LoadConfig(venueID)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, fmt.Errorf("venue '%s' not found, available venues: %v: %w", venueID, s.venueIDs(), err)
			}
			return nil, fmt.Errorf("failed to load venue %s: %w", venueID, err)
		}
		venue = cfg
	} else {
		venue = s.configs.GetDefault()
		venueID = s.venueID(venue)
	}

	sess, err := s.sessions.Create(ctx, "", venueID, venue)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return newSessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *reservationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return newSessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *reservationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, newSessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session and its persisted state
func (s *reservationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *reservationServiceImpl) controller(ctx context.Context, sessionID string) (*session.Controller, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Controller, nil
}

// GetView returns the current projection of a session
func (s *reservationServiceImpl) GetView(ctx context.Context, sessionID string) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.View(), nil
}

// SelectSeat toggles a seat
func (s *reservationServiceImpl) SelectSeat(ctx context.Context, sessionID string, seat int) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.SelectSeat(ctx, seat)
}

// ConfirmContinue answers the inactivity warning
func (s *reservationServiceImpl) ConfirmContinue(ctx context.Context, sessionID string) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.ConfirmContinue(ctx)
}

// CancelSession expires a session immediately
func (s *reservationServiceImpl) CancelSession(ctx context.Context, sessionID string) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.CancelSession(ctx)
}

// RestartSession re-arms an expired session
func (s *reservationServiceImpl) RestartSession(ctx context.Context, sessionID string) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.Restart(ctx)
}

// UpdatePassenger stores a passenger draft
func (s *reservationServiceImpl) UpdatePassenger(ctx context.Context, sessionID string, rec passenger.Record) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.UpdatePassenger(ctx, rec)
}

// ToggleForm opens or closes a passenger form
func (s *reservationServiceImpl) ToggleForm(ctx context.Context, sessionID string, seat int) (*session.View, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.ToggleForm(seat)
}

// SubmitPassengers validates and accepts the passenger details
func (s *reservationServiceImpl) SubmitPassengers(ctx context.Context, sessionID string, records []passenger.Record) (*session.SubmitResult, error) {
	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.SubmitPassengers(ctx, records)
}

// ListVenues returns every valid venue configuration
func (s *reservationServiceImpl) ListVenues(ctx context.Context) ([]*config.VenueInfo, error) {
	return s.configs.ListConfigs()
}

// GetVenue loads one venue configuration
func (s *reservationServiceImpl) GetVenue(ctx context.Context, venueID string) (*grid.VenueConfig, error) {
	return Resolver(s.configs)(venueID)
}

func (s *reservationServiceImpl) venueIDs() []string {
	infos, err := s.configs.ListConfigs()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.VenueID)
	}
	return ids
}

// venueID finds the id of a loaded venue by its display name
func (s *reservationServiceImpl) venueID(venue *grid.VenueConfig) string {
	if infos, err := s.configs.ListConfigs(); err == nil {
		for _, info := range infos {
			if info.Name == venue.Name {
				return info.VenueID
			}
		}
	}
	return config.DefaultVenueID
}
