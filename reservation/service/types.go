package service

import (
	"time"

	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/session"
)

// SessionInfo provides information about a reservation session
type SessionInfo struct {
	ID             string            `json:"id"`
	VenueID        string            `json:"venue_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Venue          *grid.VenueConfig `json:"venue"`
	View           *session.View     `json:"view"`
}

func newSessionInfo(s *session.Session) *SessionInfo {
	return &SessionInfo{
		ID:             s.ID,
		VenueID:        s.VenueID,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		Venue:          s.Controller.Venue(),
		View:           s.Controller.View(),
	}
}
